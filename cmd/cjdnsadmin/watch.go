package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/furetosan/cjdnsadmin/internal/admin"
	"github.com/furetosan/cjdnsadmin/internal/config"
	"github.com/furetosan/cjdnsadmin/internal/node"
	"github.com/furetosan/cjdnsadmin/internal/output"
	"github.com/furetosan/cjdnsadmin/internal/stats"
)

// maxWatchSamples bounds the rolling latency window per node.
const maxWatchSamples = 60

func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuous ping dashboard across all configured nodes",
		Long: `Ping every configured node on an interval and repaint a latency
dashboard with tail percentiles over a rolling sample window. Runs until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if interval == 0 {
				interval = cfg.Defaults.WatchInterval.Std()
			}
			if interval == 0 {
				interval = 10 * time.Second
			}
			return runWatch(cmd, cfg, interval)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "refresh interval (default from config, else 10s)")
	return cmd
}

// nodeWindow is one node's rolling sample state.
type nodeWindow struct {
	latencies []time.Duration
	failures  int
	samples   int
}

func (w *nodeWindow) record(latency time.Duration, err error) {
	w.samples++
	if err != nil {
		w.failures++
		return
	}
	w.latencies = append(w.latencies, latency)
	if len(w.latencies) > maxWatchSamples {
		w.latencies = w.latencies[len(w.latencies)-maxWatchSamples:]
	}
}

func runWatch(cmd *cobra.Command, cfg *config.Config, interval time.Duration) error {
	logger := newLogger(cmd)

	// One long-lived client per node; the whole dashboard shares them.
	fleet, err := node.DialFleet(cfg.Nodes, func(n config.Node) (*admin.Client, error) {
		return dialNode(n, logger)
	})
	if err != nil {
		return err
	}
	defer fleet.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	windows := make(map[string]*nodeWindow, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		windows[n.Name] = &nodeWindow{}
	}

	sample := func() {
		for _, res := range fleet.PingAll(ctx) {
			windows[res.Node.Name].record(res.Latency, res.Err)
		}

		rows := make([]output.WatchRow, len(cfg.Nodes))
		for i, n := range cfg.Nodes {
			w := windows[n.Name]
			rows[i] = output.WatchRow{
				NodeName: n.Name,
				Samples:  w.samples,
				Failures: w.failures,
				Tail:     stats.CalculateTailLatency(w.latencies),
				Avg:      stats.Average(w.latencies),
			}
		}
		output.RenderWatch(rows, time.Now())
	}

	// Immediate first render, then refresh on the ticker.
	sample()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sample()
		case <-ctx.Done():
			return nil
		}
	}
}
