package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ksasa/router/internal/hitl"
)

func newPendingCmd(g *globalFlags) *cobra.Command {
	var serverURL string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List actions awaiting approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			adm, err := openAdmin(cmd.Context(), g, serverURL)
			if err != nil {
				return err
			}
			defer adm.Close()

			items, err := adm.Pending(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(items)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No pending actions.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tCREATED")
			for _, a := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", a.ID, a.Type, a.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of a running router (default: use the database)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newApproveCmd(g *globalFlags) *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "approve <pending-id>",
		Short: "Approve a pending action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adm, err := openAdmin(cmd.Context(), g, serverURL)
			if err != nil {
				return err
			}
			defer adm.Close()

			a, err := adm.Approve(cmd.Context(), args[0])
			if err != nil {
				return decisionError(args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", a.ID, a.Status, a.Type)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of a running router (default: use the database)")
	return cmd
}

func newDeclineCmd(g *globalFlags) *cobra.Command {
	var serverURL, reason string
	cmd := &cobra.Command{
		Use:   "decline <pending-id>",
		Short: "Decline a pending action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adm, err := openAdmin(cmd.Context(), g, serverURL)
			if err != nil {
				return err
			}
			defer adm.Close()

			a, err := adm.Decline(cmd.Context(), args[0], reason)
			if err != nil {
				return decisionError(args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s): %s\n", a.ID, a.Status, a.Type, a.Reason)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of a running router (default: use the database)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the action was declined")
	return cmd
}

func decisionError(id string, err error) error {
	switch {
	case errors.Is(err, hitl.ErrNotFound):
		return fmt.Errorf("%s: no such pending action: %w", id, err)
	case errors.Is(err, hitl.ErrNotPending):
		return fmt.Errorf("%s: already decided: %w", id, err)
	}
	return err
}
