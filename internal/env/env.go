// Package env provides environment variable loading from .env files, so
// admin passwords can live in a gitignored file instead of the YAML config.
package env

import (
	"os"
	"strings"
)

// Load reads KEY=VALUE pairs from a .env file in the working directory and
// sets them with os.Setenv. Missing files are fine; the system environment
// is used as-is. Lines starting with # are comments, and values may be
// wrapped in single or double quotes.
func Load() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Split on the first "=" only; values may themselves contain "=".
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		os.Setenv(key, value)
	}
}
