// =============================================================================
// FILE: cmd/cjdnsadmin/main.go
// ROLE: CLI Entry Point — Command Tree and Global Flags
// =============================================================================
//
// SYSTEM CONTEXT
// ==============
// cjdnsadmin is the operator-facing front end for the admin RPC client. Each
// subcommand lives in its own file in this package:
//
//	ping       round-trip an authenticated ping (latency check)
//	cookie     fetch a raw challenge cookie (reachability probe, no password)
//	call       invoke any admin function with key=value arguments
//	functions  list the daemon's admin function inventory
//	watch      continuous ping dashboard across all configured nodes
//	passwd     generate a random admin password
//
// Global flags select the config file and node and control log verbosity.
// The command tree only wires flags to the runners; all protocol work lives
// in internal/admin.
// =============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/furetosan/cjdnsadmin/internal/env"
)

func main() {
	env.Load()

	root := &cobra.Command{
		Use:           "cjdnsadmin",
		Short:         "Administer running cjdns daemons over the admin RPC socket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default: ./cjdnsadmin.yaml, then ~/.cjdnsadmin)")
	root.PersistentFlags().String("node", "", "name of the configured node to talk to")
	root.PersistentFlags().BoolP("verbose", "v", false, "show debug logging")

	root.AddCommand(
		pingCmd(),
		cookieCmd(),
		callCmd(),
		functionsCmd(),
		watchCmd(),
		passwdCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
