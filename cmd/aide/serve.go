package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/aide/config"
	"github.com/mohammad-safakhou/aide/internal/reconcile"
	srv "github.com/mohammad-safakhou/aide/internal/server"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Reconcile.Schedule != "" && a.db != nil {
				job, err := reconcile.NewStoreJob(reconcile.Options{
					DB:             a.db,
					PrimaryTimeout: cfg.Storage.Postgres.Timeout,
					DataDir:        cfg.Storage.File.DataDir,
					LockTimeout:    cfg.Storage.File.LockTimeout,
					Logger:         a.logger,
				})
				if err != nil {
					return err
				}
				sched := &reconcile.Scheduler{Job: job, Schedule: cfg.Reconcile.Schedule, Rdb: a.rdb, LockTTL: cfg.Reconcile.LockTTL, Logger: a.logger}
				sched.Start(ctx)
				a.logger.Info().Str("schedule", cfg.Reconcile.Schedule).Msg("reconcile scheduler started")
			}

			e := srv.New(srv.Options{
				Assistant: &srv.AssistantHandler{Assistant: a.orch},
				Gatherer:  a.registry,
				Logger:    a.logger,
			})
			return srv.Run(ctx, e, cfg.Server, a.logger)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")

	return serve
}
