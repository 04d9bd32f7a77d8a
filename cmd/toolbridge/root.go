package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/callbacks"
	"github.com/effective-security/toolbridge/config"
	"github.com/effective-security/toolbridge/encoding"
	"github.com/effective-security/toolbridge/mcp"
	"github.com/effective-security/toolbridge/mcp/transport"
	"github.com/effective-security/toolbridge/mcp/transport/httptransport"
	"github.com/effective-security/toolbridge/mcp/transport/stdio"
	"github.com/effective-security/toolbridge/registry"
	"github.com/effective-security/toolbridge/tools/builtin"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolbridge/cmd", "toolbridge")

const version = "1.0.0"

// cli holds the global flags and the collaborators shared by the commands
type cli struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configFile string
	logLevel   string
	output     string
	verbose    bool

	// remote server, used instead of the local registry when set
	serverURL     string
	serverCommand string

	cfg     *config.Config
	options builtin.Options
	// stats counts the invocations of the local registry
	stats *callbacks.Stats
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	c := &cli{in: in, out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:           "toolbridge",
		Short:         "Tool registry, MCP server and tool dispatcher",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "Configuration file, YAML or JSON")
	flags.StringVar(&c.logLevel, "log-level", "error", "Log level: debug, info, warning, error")
	flags.StringVarP(&c.output, "output", "o", encoding.ModeDefault, "Output format: "+strings.Join(encoding.Modes(), ", "))
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Print the tool invocations to stderr")

	rootCmd.AddCommand(
		newServeCmd(c),
		newToolsCmd(c),
		newInvokeCmd(c),
		newAskCmd(c),
		newConfigCmd(c),
	)
	return rootCmd
}

func (c *cli) init() error {
	level, err := parseLevel(c.logLevel)
	if err != nil {
		return err
	}
	// stdout is the protocol channel of the stdio transport
	xlog.SetFormatter(xlog.NewStringFormatter(c.errOut))
	xlog.SetGlobalLogLevel(level)

	if _, err = encoding.New(c.output, nil); err != nil {
		return err
	}

	c.cfg, err = config.Load(c.configFile)
	return err
}

func parseLevel(s string) (xlog.LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return xlog.DEBUG, nil
	case "info":
		return xlog.INFO, nil
	case "warning", "warn":
		return xlog.WARNING, nil
	case "error":
		return xlog.ERROR, nil
	default:
		return xlog.ERROR, errors.Errorf("invalid log level: %s", s)
	}
}

// registry returns the local registry with the configured tools
func (c *cli) registry(ctx context.Context) (*registry.Registry, io.Closer, error) {
	c.stats = callbacks.NewStats()
	cb := callbacks.NewFanout(callbacks.NewPackageLogger(logger), c.stats)
	if c.verbose {
		cb.Add(callbacks.NewPrinter(c.errOut, callbacks.ModeVerbose))
	}
	reg := registry.New(registry.WithCallback(cb))
	closer, err := builtin.Register(ctx, reg, c.cfg, c.options)
	if err != nil {
		return nil, nil, err
	}
	return reg, closer, nil
}

func (c *cli) isRemote() bool {
	return c.serverURL != "" || c.serverCommand != ""
}

// connect returns a client of the remote server
func (c *cli) connect(ctx context.Context) (*mcp.Client, error) {
	var tr transport.Transport
	if c.serverURL != "" {
		tr = httptransport.NewClient(c.serverURL)
	} else {
		args := strings.Fields(c.serverCommand)
		if len(args) == 0 {
			return nil, errors.New("server command is required")
		}
		t, err := stdio.NewCommand(ctx, stdio.CommandConfig{
			Command: args[0],
			Args:    args[1:],
			Stderr:  c.errOut,
		})
		if err != nil {
			return nil, err
		}
		tr = t
	}

	client := mcp.NewClient(tr,
		mcp.WithClientInfo("toolbridge", version),
		mcp.WithClientTimeout(c.cfg.Server.RequestTimeoutDuration()),
	)
	if _, err := client.Initialize(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (c *cli) addRemoteFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.serverURL, "server", "", "URL of a remote MCP server over HTTP")
	cmd.Flags().StringVar(&c.serverCommand, "server-command", "", "Command starting a remote MCP server over stdio")
	cmd.MarkFlagsMutuallyExclusive("server", "server-command")
}

// printStats writes the invocation counters of the local registry to stderr
func (c *cli) printStats() {
	if !c.verbose || c.stats == nil {
		return
	}
	for _, st := range c.stats.Tools() {
		fmt.Fprintf(c.errOut, "Tool Stats: %s: calls=%d succeeded=%d failed=%d duration=%s\n",
			st.Name, st.Calls, st.Succeeded, st.Failed, st.Duration)
	}
}

// print writes v in the output format
func (c *cli) print(v any) error {
	bs, err := encoding.Marshal(c.output, v)
	if err != nil {
		return err
	}
	if _, err = c.out.Write(bs); err != nil {
		return errors.WithStack(err)
	}
	if len(bs) > 0 && bs[len(bs)-1] != '\n' {
		_, err = io.WriteString(c.out, "\n")
	}
	return errors.WithStack(err)
}
