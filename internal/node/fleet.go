// Package node runs admin operations across every configured daemon.
//
// Two shapes of fan-out exist. A sweep (ping --all) dials each node, runs
// one authenticated ping and hangs up; per-node dial and RPC failures are
// part of the answer, not reasons to stop. A Fleet (watch) keeps one
// long-lived client per node so repeated sampling reuses the same handshake
// path and local socket instead of re-dialing every tick.
package node

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/furetosan/cjdnsadmin/internal/admin"
	"github.com/furetosan/cjdnsadmin/internal/config"
)

// Dialer opens an admin client for one configured node.
type Dialer func(n config.Node) (*admin.Client, error)

// PingResult is one node's outcome of a ping fan-out. Err covers both dial
// failures and RPC failures (admin.Error values pass through unwrapped).
type PingResult struct {
	Node    config.Node
	Latency time.Duration
	Err     error
}

// SweepPing concurrently dials every node, round-trips one authenticated
// ping each, and closes the clients again. Results come back in node order.
// Nothing fails fast: an unreachable or misconfigured node reports its error
// in its own slot while the rest of the sweep proceeds. Cancelling ctx stops
// the in-flight pings; their slots report the cancellation.
func SweepPing(ctx context.Context, nodes []config.Node, dial Dialer) []PingResult {
	results := make([]PingResult, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	for i, n := range nodes {
		results[i].Node = n
		g.Go(func() error {
			client, err := dial(n)
			if err != nil {
				results[i].Err = err
				return nil
			}
			defer client.Close()
			results[i].Latency, results[i].Err = client.Ping(gctx)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Fleet holds one long-lived admin client per node.
type Fleet struct {
	nodes   []config.Node
	clients []*admin.Client
}

// DialFleet connects to every node up front. Unlike a sweep, a dashboard is
// useless with half its columns silently missing, so the first dial failure
// aborts and already-opened clients are closed again.
func DialFleet(nodes []config.Node, dial Dialer) (*Fleet, error) {
	f := &Fleet{nodes: nodes, clients: make([]*admin.Client, 0, len(nodes))}
	for _, n := range nodes {
		client, err := dial(n)
		if err != nil {
			f.Close()
			return nil, err
		}
		f.clients = append(f.clients, client)
	}
	return f, nil
}

// PingAll round-trips one ping per node over the fleet's standing clients.
func (f *Fleet) PingAll(ctx context.Context) []PingResult {
	results := make([]PingResult, len(f.nodes))

	g, gctx := errgroup.WithContext(ctx)
	for i := range f.nodes {
		results[i].Node = f.nodes[i]
		client := f.clients[i]
		g.Go(func() error {
			results[i].Latency, results[i].Err = client.Ping(gctx)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Close hangs up every client in the fleet.
func (f *Fleet) Close() {
	for _, client := range f.clients {
		client.Close()
	}
}
