package main

import (
	"context"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/decider"
	"github.com/effective-security/toolbridge/decider/factory"
	"github.com/effective-security/toolbridge/dispatcher"
	"github.com/effective-security/toolbridge/encoding"
	"github.com/effective-security/toolbridge/tools"
	"github.com/effective-security/toolbridge/utils"
	"github.com/spf13/cobra"
)

func newAskCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Let the model choose a tool for the prompt and invoke it",
		Long: `Lists the tools, asks the configured model to choose one with its arguments,
and invokes it. The prompt is read from stdin when not given as arguments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" {
				bs, err := io.ReadAll(c.in)
				if err != nil {
					return errors.Wrap(err, "failed to read prompt")
				}
				prompt = string(bs)
			}
			prompt = strings.TrimSpace(prompt)
			if prompt == "" {
				return errors.New("prompt is required")
			}
			return c.ask(cmd.Context(), prompt)
		},
	}
	c.addRemoteFlags(cmd)
	return cmd
}

func (c *cli) ask(ctx context.Context, prompt string) error {
	source, closer, err := c.source(ctx)
	if err != nil {
		return err
	}
	defer closer.Close()

	list, err := source.ListTools(ctx)
	if err != nil {
		return err
	}
	instructions, err := decider.FormatInstructions(c.cfg.Decider.ReplyFormat)
	if err != nil {
		return err
	}
	system := c.cfg.Decider.SystemPrompt + "\n\nThe available tools:\n" +
		tools.GetDescriptions(list...) + "\n" +
		"If you can not call functions natively, reply with a single object choosing the tool." +
		instructions

	d, err := factory.NewDecider(ctx, c.cfg.Decider, system)
	if err != nil {
		return err
	}

	sourceName := "local"
	if c.isRemote() {
		sourceName = "remote"
	}
	report, err := dispatcher.New(source, d,
		dispatcher.WithCallTimeout(c.cfg.Server.CallTimeoutDuration()),
		dispatcher.WithSourceName(sourceName),
	).Run(ctx, prompt)
	c.printStats()

	if c.output != encoding.ModeText {
		if perr := c.print(report); perr != nil {
			return perr
		}
		return err
	}
	if err != nil {
		return err
	}
	return c.print(utils.Stringify(report.Result))
}
