package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/furetosan/cjdnsadmin/internal/output"
)

func functionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions",
		Short: "List the daemon's admin functions",
		Long: `Page through Admin_availableFunctions and print the daemon's complete
admin function inventory with each function's declared arguments.
Required arguments print bare; optional ones in brackets.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := selectedNode(cmd)
			if err != nil {
				return err
			}
			client, err := dialNode(n, newLogger(cmd))
			if err != nil {
				return err
			}
			defer client.Close()

			fns, err := client.AvailableFunctions(cmd.Context())
			if err != nil {
				return fmt.Errorf("functions on %s: %w", n.Name, err)
			}
			output.RenderFunctionsTable(fns)
			return nil
		},
	}
}
