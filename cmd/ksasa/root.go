package main

import (
	"github.com/spf13/cobra"

	"github.com/ksasa/router/internal/config"
	"github.com/ksasa/router/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "ksasa",
		Short: "Citizen request router with human-in-the-loop approvals",
		Long: "ksasa routes citizen messages to education, health and governance adapters,\n" +
			"grounds replies in a seed corpus, and holds consequential actions for operator approval.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			g.cfg = cfg
			logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (env vars override it)")

	root.AddCommand(
		newServeCmd(g),
		newAskCmd(g),
		newPendingCmd(g),
		newApproveCmd(g),
		newDeclineCmd(g),
		newAuditCmd(g),
	)
	return root
}
