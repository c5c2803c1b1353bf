package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ksasa/router/internal/logging"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Builds the evidence store from the seed directory, restores pending actions
from the database and serves the HTTP API until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			logging.New("serve").Info("starting router",
				"addr", g.cfg.Addr, "db", g.cfg.DBPath, "audit_dir", g.cfg.AuditDir,
				"pending", len(a.ledger.ListPending()))
			return a.server(g.cfg.StaticDir).ListenAndServe(ctx, g.cfg.Addr)
		},
	}
}
