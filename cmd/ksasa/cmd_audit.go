package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ksasa/router/internal/store"
)

func newAuditCmd(g *globalFlags) *cobra.Command {
	var last int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the most recent audit events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := store.NewStore(g.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			rows, err := st.ListAudit(cmd.Context(), last)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(rows)
			}
			for _, r := range rows {
				fmt.Fprintf(out, "%s  %-16s %s\n", r.TS.Format("2006-01-02 15:04:05"), r.Event, r.Body)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "number of events to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
