package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/aide/config"
	"github.com/mohammad-safakhou/aide/internal/mcptools"
)

func mcpCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			// stdout carries the protocol; logs must stay on stderr
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return server.ServeStdio(mcptools.NewServer(a.orch))
		},
	}
}
