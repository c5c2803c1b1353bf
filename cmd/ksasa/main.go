// ksasa routes citizen requests to education, health and governance
// adapters and keeps the human-approval ledger.
//
// Usage:
//
//	ksasa serve [--config ksasa.yaml]
//	ksasa ask <domain> <message> [--context '{"form": {...}}']
//	ksasa pending [--server http://host:8080]
//	ksasa approve <pending-id>
//	ksasa decline <pending-id> --reason <text>
//	ksasa audit --last 20 [--json]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
