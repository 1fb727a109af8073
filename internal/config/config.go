// =============================================================================
// FILE: internal/config/config.go
// ROLE: Configuration Layer — Loading and Validating Node Settings
// =============================================================================
//
// SYSTEM CONTEXT
// ==============
// This is the first thing every command runs. Before any datagram leaves the
// machine, the configuration must be loaded: a YAML file listing the daemons
// to administer, with ${VAR} expansion so admin passwords stay out of files
// that might be committed, and a legacy fallback to the ~/.cjdnsadmin JSON
// file that the wider cjdns tool ecosystem has always read.
//
// DESIGN DECISIONS
// ================
// 1. YAML OVER JSON for the primary file: comments matter in a file where
//    operators annotate which node is which.
// 2. ENVIRONMENT VARIABLE EXPANSION: passwords are referenced as
//    ${CJDNS_ADMIN_PASSWORD}-style placeholders and resolved at load time.
// 3. DEFAULT TIMEOUT INHERITANCE: nodes without an explicit timeout inherit
//    defaults.timeout; zero means the client's own default.
// 4. LEGACY COMPATIBILITY: if no YAML file exists, ~/.cjdnsadmin (JSON with
//    addr/port/password) is honored so existing setups keep working.
// =============================================================================

package config

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAdminPort is the port a stock daemon binds its admin socket to.
const DefaultAdminPort = 11234

// Duration wraps time.Duration so the YAML file can say "3s" or "250ms".
// yaml.v3 has no native duration support; bare integers are taken as
// seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("config: bad duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level configuration: the set of daemons this tool
// administers plus shared defaults.
type Config struct {
	Nodes    []Node   `yaml:"nodes"`
	Defaults Defaults `yaml:"defaults"`
}

// Node identifies one daemon admin endpoint.
type Node struct {
	Name     string   `yaml:"name"`              // Identifier shown in output (e.g., "home-router")
	Addr     string   `yaml:"addr"`              // host:port of the admin socket
	Password string   `yaml:"password"`          // Admin credential (env vars expanded)
	Timeout  Duration `yaml:"timeout,omitempty"` // Per-node override; 0 = use default
}

// Defaults holds settings shared across all commands.
type Defaults struct {
	Timeout       Duration `yaml:"timeout"`        // Per-request timeout
	WatchInterval Duration `yaml:"watch_interval"` // Refresh interval for the watch command
}

// AddrPort parses the node's address. A port-less address gets the standard
// admin port.
func (n Node) AddrPort() (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(n.Addr); err == nil {
		return ap, nil
	}
	addr, err := netip.ParseAddr(n.Addr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("config: node %q: bad addr %q: %w", n.Name, n.Addr, err)
	}
	return netip.AddrPortFrom(addr, DefaultAdminPort), nil
}

// Load reads a YAML configuration file, expands ${VAR} references and fills
// per-node timeouts from the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(cfg.Nodes) == 0 {
		return nil, fmt.Errorf("config: %s defines no nodes", path)
	}

	for i := range cfg.Nodes {
		if cfg.Nodes[i].Timeout == 0 {
			cfg.Nodes[i].Timeout = cfg.Defaults.Timeout
		}
		if cfg.Nodes[i].Name == "" {
			cfg.Nodes[i].Name = cfg.Nodes[i].Addr
		}
	}
	return &cfg, nil
}

// legacyFile mirrors the JSON connection file the cjdns tools read.
type legacyFile struct {
	Addr     string `json:"addr"`
	Port     uint16 `json:"port"`
	Password string `json:"password"`
}

// LoadLegacy reads a ~/.cjdnsadmin-style JSON file and lifts it into a
// single-node Config.
func LoadLegacy(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lf legacyFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if lf.Addr == "" {
		lf.Addr = "127.0.0.1"
	}
	if lf.Port == 0 {
		lf.Port = DefaultAdminPort
	}
	return &Config{
		Nodes: []Node{{
			Name:     "default",
			Addr:     fmt.Sprintf("%s:%d", lf.Addr, lf.Port),
			Password: lf.Password,
		}},
	}, nil
}

// Resolve loads configuration with the standard fallback chain: the explicit
// path if given, else cjdnsadmin.yaml in the working directory, else the
// legacy ~/.cjdnsadmin file.
func Resolve(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if cfg, err := Load("cjdnsadmin.yaml"); err == nil {
		return cfg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("config: no cjdnsadmin.yaml and no home directory: %w", err)
	}
	cfg, err := LoadLegacy(filepath.Join(home, ".cjdnsadmin"))
	if err != nil {
		return nil, fmt.Errorf("config: no cjdnsadmin.yaml and no usable ~/.cjdnsadmin: %w", err)
	}
	return cfg, nil
}

// Select returns the named node, or the sole configured node when name is
// empty.
func (c *Config) Select(name string) (Node, error) {
	if name == "" {
		if len(c.Nodes) == 1 {
			return c.Nodes[0], nil
		}
		return Node{}, fmt.Errorf("config: %d nodes configured, pick one with --node", len(c.Nodes))
	}
	for _, n := range c.Nodes {
		if n.Name == name {
			return n, nil
		}
	}
	return Node{}, fmt.Errorf("config: no node named %q", name)
}
