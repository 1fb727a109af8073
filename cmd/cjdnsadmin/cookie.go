package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func cookieCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cookie",
		Short: "Fetch a raw challenge cookie",
		Long: `Request a single challenge cookie from the daemon and print it. This
exercises only the unauthenticated half of the handshake, so it works
without a password and doubles as a reachability probe.`,
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

			cookie, err := client.Cookie(cmd.Context())
			if err != nil {
				return fmt.Errorf("cookie from %s: %w", n.Name, err)
			}
			fmt.Println(cookie)
			return nil
		},
	}
}
