package main

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/encoding"
	yamlenc "github.com/effective-security/toolbridge/encoding/yaml"
	"github.com/spf13/cobra"
)

const redacted = "***"

func newConfigCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, with the API keys redacted",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := *c.cfg
			if cfg.Decider.APIKey != "" {
				cfg.Decider.APIKey = redacted
			}
			if cfg.Search.TavilyAPIKey != "" {
				cfg.Search.TavilyAPIKey = redacted
			}

			if c.output != encoding.ModeText && c.output != encoding.ModeYAML {
				return c.print(cfg)
			}
			bs, err := yamlenc.NewEncoder(cfg).WithCommentStyle(yamlenc.HeadComment).Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = c.out.Write(bs)
			return errors.WithStack(err)
		},
	}
}
