// Package output renders command results for the terminal: colored status
// lines, tables, and a readable rendering of bencode dictionaries.
package output

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/furetosan/cjdnsadmin/internal/admin"
	"github.com/furetosan/cjdnsadmin/internal/stats"
)

// Colors for status indicators
var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// DisableColors turns off ANSI output, for piped or scripted use.
func DisableColors() {
	color.NoColor = true
}

// PingResult is one node's outcome of a ping sweep.
type PingResult struct {
	NodeName string
	Addr     string
	Latency  time.Duration
	Err      error
}

// RenderPingTable prints one row per node.
func RenderPingTable(results []PingResult) {
	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Node", "Address", "Status", "Latency")
	tbl.WithHeaderFormatter(headerFmt)

	for _, r := range results {
		if r.Err != nil {
			tbl.AddRow(r.NodeName, r.Addr, red("DOWN"), red(r.Err.Error()))
			continue
		}
		tbl.AddRow(r.NodeName, r.Addr, green("UP"), formatLatency(r.Latency))
	}
	tbl.Print()
}

// RenderFunctionsTable prints the daemon's admin function inventory.
func RenderFunctionsTable(fns []admin.Function) {
	fmt.Printf("%s %s\n\n", bold(fmt.Sprintf("%d", len(fns))), bold("admin functions"))

	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Function", "Arguments")
	tbl.WithHeaderFormatter(headerFmt)

	for _, fn := range fns {
		tbl.AddRow(fn.Name, formatArgs(fn.Args))
	}
	tbl.Print()
}

func formatArgs(args []admin.FunctionArg) string {
	if len(args) == 0 {
		return ""
	}
	out := ""
	for i, a := range args {
		if i > 0 {
			out += ", "
		}
		if a.Required {
			out += fmt.Sprintf("%s %s", a.Name, a.Type)
		} else {
			out += fmt.Sprintf("[%s %s]", a.Name, a.Type)
		}
	}
	return out
}

// WatchRow is one node's rolling sample window in the watch dashboard.
type WatchRow struct {
	NodeName string
	Samples  int
	Failures int
	Tail     stats.TailLatency
	Avg      time.Duration
}

// RenderWatch repaints the watch dashboard.
func RenderWatch(rows []WatchRow, at time.Time) {
	// ANSI clear-screen keeps the dashboard in place between refreshes.
	fmt.Print("\033[2J\033[H")
	fmt.Printf("%s    %s\n\n", bold("cjdns admin watch"), cyan(at.Format("15:04:05")))

	headerFmt := color.New(color.FgCyan, color.Underline).SprintfFunc()
	tbl := table.New("Node", "Samples", "Failed", "Avg", "p50", "p95", "p99", "Max")
	tbl.WithHeaderFormatter(headerFmt)

	for _, r := range rows {
		failed := fmt.Sprintf("%d", r.Failures)
		if r.Failures > 0 {
			failed = red(failed)
		}
		tbl.AddRow(
			r.NodeName,
			r.Samples,
			failed,
			formatLatency(r.Avg),
			formatLatency(r.Tail.P50),
			formatLatency(r.Tail.P95),
			formatLatency(r.Tail.P99),
			formatLatency(r.Tail.Max),
		)
	}
	tbl.Print()
	fmt.Printf("\n%s\n", yellow("Ctrl-C to stop"))
}

// formatLatency colors a round-trip by how healthy it looks for a local or
// LAN daemon.
func formatLatency(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	s := d.Round(time.Microsecond * 100).String()
	switch {
	case d < 50*time.Millisecond:
		return green(s)
	case d < 250*time.Millisecond:
		return yellow(s)
	default:
		return red(s)
	}
}
