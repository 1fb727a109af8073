package main

import (
	"log"
	"os"
	"time"

	"github.com/hashicorp/logutils"
	"github.com/spf13/cobra"

	"github.com/furetosan/cjdnsadmin/internal/admin"
	"github.com/furetosan/cjdnsadmin/internal/config"
	"github.com/furetosan/cjdnsadmin/internal/transport"
)

// latencyPrecision rounds reported round-trips for display.
const latencyPrecision = 100 * time.Microsecond

// newLogger builds the shared logger with level filtering: DEBUG lines are
// hidden unless --verbose is set.
func newLogger(cmd *cobra.Command) *log.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	minLevel := logutils.LogLevel("WARN")
	if verbose {
		minLevel = "DEBUG"
	}
	filter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERR"},
		MinLevel: minLevel,
		Writer:   os.Stderr,
	}
	return log.New(filter, "", log.LstdFlags)
}

// loadConfig resolves the configuration using the --config flag and the
// standard fallback chain.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Resolve(path)
}

// selectedNode returns the node picked by --node (or the only node).
func selectedNode(cmd *cobra.Command) (config.Node, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Node{}, err
	}
	name, _ := cmd.Flags().GetString("node")
	return cfg.Select(name)
}

// dialNode opens a UDP transport and an admin client for one node. The
// returned client owns the transport; Close tears both down.
func dialNode(n config.Node, logger *log.Logger) (*admin.Client, error) {
	target, err := n.AddrPort()
	if err != nil {
		return nil, err
	}
	tr, err := transport.New(logger)
	if err != nil {
		return nil, err
	}
	return admin.New(tr, admin.Config{
		Target:   target,
		Password: n.Password,
		Timeout:  n.Timeout.Std(),
		Logger:   logger,
	}), nil
}
