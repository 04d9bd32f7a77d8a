package main

import (
	"context"

	"github.com/effective-security/toolbridge/encoding"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/tools"
	"github.com/effective-security/toolbridge/translator"
	"github.com/spf13/cobra"
)

func newToolsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools as function definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := c.listTools(cmd.Context())
			if err != nil {
				return err
			}
			if c.output == encoding.ModeText {
				return c.print(tools.GetDescriptions(list...))
			}
			return c.print(translator.TranslateAll(list))
		},
	}
	c.addRemoteFlags(cmd)
	return cmd
}

func (c *cli) listTools(ctx context.Context) ([]registry.ToolInfo, error) {
	if c.isRemote() {
		client, err := c.connect(ctx)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		return client.ListTools(ctx)
	}

	reg, closer, err := c.registry(ctx)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return reg.List(), nil
}
