package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/furetosan/cjdnsadmin/internal/admin"
	"github.com/furetosan/cjdnsadmin/internal/config"
	"github.com/furetosan/cjdnsadmin/internal/node"
	"github.com/furetosan/cjdnsadmin/internal/output"
)

func pingCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Round-trip an authenticated ping",
		Long: `Send an authenticated ping through the full cookie/auth handshake and
report the round-trip latency. With --all, every configured node is pinged
concurrently.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(cmd)
			if all {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return runPingAll(cmd.Context(), cfg, logger)
			}
			n, err := selectedNode(cmd)
			if err != nil {
				return err
			}
			return runPing(cmd.Context(), n, logger)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "ping every configured node")
	return cmd
}

func runPing(ctx context.Context, n config.Node, logger *log.Logger) error {
	client, err := dialNode(n, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	latency, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping %s: %w", n.Name, err)
	}
	fmt.Printf("pong from %s (%s) in %s\n", n.Name, client.Target(), latency.Round(latencyPrecision))
	return nil
}

func runPingAll(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	results := node.SweepPing(ctx, cfg.Nodes, func(n config.Node) (*admin.Client, error) {
		return dialNode(n, logger)
	})

	rows := make([]output.PingResult, len(results))
	for i, res := range results {
		rows[i] = output.PingResult{
			NodeName: res.Node.Name,
			Addr:     res.Node.Addr,
			Latency:  res.Latency,
			Err:      res.Err,
		}
	}
	output.RenderPingTable(rows)
	return nil
}
