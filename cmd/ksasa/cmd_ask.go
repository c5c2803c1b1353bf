package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ksasa/router/internal/adapter"
	"github.com/ksasa/router/internal/orchestrator"
)

func newAskCmd(g *globalFlags) *cobra.Command {
	var contextJSON string
	cmd := &cobra.Command{
		Use:   "ask <domain> <message>",
		Short: "Route one message through the adapters and print the reply",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := adapter.Context{}
			if contextJSON != "" {
				if err := json.Unmarshal([]byte(contextJSON), &c); err != nil {
					return fmt.Errorf("parse --context: %w", err)
				}
			}

			a, err := buildApp(cmd.Context(), g.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			domain, _ := orchestrator.ParseDomain(args[0])
			reply := a.orchestrator.Handle(cmd.Context(), domain, strings.Join(args[1:], " "), c)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(reply)
		},
	}
	cmd.Flags().StringVar(&contextJSON, "context", "", "request context as a JSON object")
	return cmd
}
