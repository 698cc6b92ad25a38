package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/aide/config"
	"github.com/mohammad-safakhou/aide/internal/reconcile"
	"github.com/mohammad-safakhou/aide/internal/store"
)

func reconcileCMD(cfgPath *string) *cobra.Command {
	var asJSON bool
	var rec = &cobra.Command{
		Use:   "reconcile",
		Short: "Move records from the local fallback into the primary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			pg := cfg.Storage.Postgres
			if cfg.Storage.Primary != "postgres" || !pg.Configured() {
				return fmt.Errorf("reconcile needs a configured postgres primary")
			}
			logger := newLogger(cfg)
			db, err := store.OpenPostgres(pg.DSN(), pg.MaxOpenConns, pg.ConnMaxLifetime)
			if err != nil {
				return err
			}
			defer db.Close()

			job, err := reconcile.NewStoreJob(reconcile.Options{
				DB:             db,
				PrimaryTimeout: pg.Timeout,
				DataDir:        cfg.Storage.File.DataDir,
				LockTimeout:    cfg.Storage.File.LockTimeout,
				Logger:         logger,
			})
			if err != nil {
				return err
			}
			reports, runErr := job.Run(context.Background())

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					fmt.Fprintf(out, "%-12s imported=%d existing=%d removed=%d", r.Collection, r.Imported, r.Existing, r.Removed)
					if len(r.Rejected) > 0 {
						fmt.Fprintf(out, " rejected=%s", strings.Join(r.Rejected, ","))
					}
					if r.Error != "" {
						fmt.Fprintf(out, " error=%q", r.Error)
					}
					fmt.Fprintln(out)
				}
			}
			return runErr
		},
	}
	rec.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")

	return rec
}
