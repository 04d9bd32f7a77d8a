package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/dispatcher"
	"github.com/effective-security/toolbridge/encoding"
	"github.com/effective-security/toolbridge/value"
	"github.com/spf13/cobra"
)

func newInvokeCmd(c *cli) *cobra.Command {
	var args, argsFile string

	cmd := &cobra.Command{
		Use:   "invoke <tool>",
		Short: "Invoke a tool with JSON arguments",
		Long: `Invokes a tool with the arguments given as a JSON object,
or read from a JSON, YAML or TOML file chosen by its extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, params []string) error {
			var obj value.Object
			var err error
			if argsFile != "" {
				obj, err = readArgs(argsFile)
			} else {
				obj, err = value.ParseObject([]byte(args))
			}
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			source, closer, err := c.source(ctx)
			if err != nil {
				return err
			}
			defer closer.Close()

			res, err := source.CallTool(ctx, params[0], obj)
			c.printStats()
			if err != nil {
				return err
			}
			return c.print(res)
		},
	}
	cmd.Flags().StringVarP(&args, "args", "a", "{}", "Tool arguments as a JSON object")
	cmd.Flags().StringVarP(&argsFile, "args-file", "f", "", "File with the tool arguments: .json, .yaml, .yml or .toml")
	cmd.MarkFlagsMutuallyExclusive("args", "args-file")
	c.addRemoteFlags(cmd)
	return cmd
}

// readArgs decodes the arguments file in the format of its extension
func readArgs(file string) (value.Object, error) {
	mode := encoding.ModeJSON
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		mode = encoding.ModeYAML
	case ".toml":
		mode = encoding.ModeTOML
	}

	bs, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read arguments")
	}
	enc, err := encoding.New(mode, nil)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err = enc.Unmarshal(bs, &m); err != nil {
		return nil, errors.Wrapf(err, "invalid arguments in %s", filepath.Base(file))
	}
	return value.ObjectFromMap(m)
}

// source returns the remote server client, or the local registry
func (c *cli) source(ctx context.Context) (dispatcher.ToolSource, io.Closer, error) {
	if c.isRemote() {
		client, err := c.connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		return client, client, nil
	}
	reg, closer, err := c.registry(ctx)
	if err != nil {
		return nil, nil, err
	}
	return dispatcher.NewLocalSource(reg), closer, nil
}
