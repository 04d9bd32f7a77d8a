package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolbridge/config"
	"github.com/effective-security/toolbridge/mcp"
	"github.com/effective-security/toolbridge/mcp/transport/httptransport"
	"github.com/effective-security/toolbridge/mcp/transport/stdio"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	var transportName, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured tools over MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if transportName != "" {
				c.cfg.Server.Transport = transportName
			}
			if addr != "" {
				c.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&transportName, "transport", "", "Transport: stdio or http, overrides the configuration")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address of the http transport, overrides the configuration")
	return cmd
}

func (c *cli) newServer(ctx context.Context) (*mcp.Server, func(), error) {
	reg, closer, err := c.registry(ctx)
	if err != nil {
		return nil, nil, err
	}
	sc := c.cfg.Server
	server := mcp.NewServer(reg,
		mcp.WithServerInfo(sc.Name, sc.Version),
		mcp.WithPaginationLimit(sc.PageSize),
		mcp.WithInstructions(sc.Instructions),
		mcp.WithRequestTimeout(sc.RequestTimeoutDuration()),
	)
	cleanup := func() {
		_ = server.Close()
		_ = closer.Close()
		for _, st := range c.stats.Tools() {
			logger.KV(xlog.INFO,
				"tool", st.Name,
				"calls", st.Calls,
				"succeeded", st.Succeeded,
				"failed", st.Failed,
				"duration", st.Duration)
		}
	}
	return server, cleanup, nil
}

// serve blocks until the context is cancelled or the stdio input is closed
func (c *cli) serve(ctx context.Context) error {
	server, cleanup, err := c.newServer(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	switch c.cfg.Server.Transport {
	case config.TransportStdio:
		tr := stdio.New(c.in, c.out)
		if err = server.Serve(tr); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case <-tr.Done():
		}
		logger.KV(xlog.INFO, "status", "stopped", "transport", config.TransportStdio)
		return nil
	case config.TransportHTTP:
		tr := httptransport.NewServer(c.cfg.Server.Endpoint)
		if err = server.Serve(tr); err != nil {
			return err
		}
		return tr.ListenAndServe(ctx, c.cfg.Server.Addr)
	default:
		return errors.Errorf("unsupported transport: %s", c.cfg.Server.Transport)
	}
}
