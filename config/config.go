// Package config handles sharedpages configuration.
//
// Configuration is loaded with overlay semantics:
//
//  1. Start with built-in defaults (embedded from default.toml)
//  2. Overlay the config file, if it exists
//  3. CLI flags and environment variables override at runtime
//     (handled by the CLI layer)
//
// The TOML decoder only sets fields present in the file, so a partial
// file leaves every other field at its default. A file that exists but
// does not parse is an error, never a silent fallback.
package config

import (
	_ "embed"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/frobware/go-sharedpages/manager"
	"github.com/frobware/go-sharedpages/procfs"
)

//go:embed default.toml
var defaultConfigTOML string

// DefaultConfigPath is where the CLI looks for a config file.
const DefaultConfigPath = "/etc/sharedpages/sharedpages.toml"

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Scan    ScanConfig    `toml:"scan"`
	Store   StoreConfig   `toml:"store"`
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	// Level is a log spec, e.g. "info" or "warn,manager=debug".
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
	// Components is an alternative to per-component entries in Level.
	Components map[string]string `toml:"components"`
}

// ToSpec returns the log spec described by c. Level wins when set;
// otherwise Components are layered on an info base.
func (c *LoggingConfig) ToSpec() string {
	if c.Level != "" {
		return c.Level
	}
	if len(c.Components) == 0 {
		return ""
	}

	parts := []string{"info"}
	for _, component := range slices.Sorted(maps.Keys(c.Components)) {
		parts = append(parts, component+"="+c.Components[component])
	}
	return strings.Join(parts, ",")
}

// ScanConfig controls how processes are scanned.
type ScanConfig struct {
	ProcRoot    string `toml:"proc_root"`
	Concurrency int    `toml:"concurrency"`
	OnError     string `toml:"on_error"`
	ByteOrder   string `toml:"byte_order"`
}

// StoreConfig controls where snapshots are persisted.
type StoreConfig struct {
	Path string `toml:"path"`
}

// DefaultConfig returns the configuration embedded in default.toml.
func DefaultConfig() Config {
	var cfg Config
	if _, err := toml.Decode(defaultConfigTOML, &cfg); err != nil {
		// default.toml is compiled in; a decode failure is a build bug.
		panic(fmt.Sprintf("config: embedded default.toml: %v", err))
	}
	return cfg
}

// Load reads the config file at path over the defaults.
//
//   - File missing: defaults, no error
//   - File valid: file values overlaid on defaults
//   - File invalid: error
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks values that the decoder cannot.
func (c *Config) Validate() error {
	if c.Scan.Concurrency < 0 {
		return fmt.Errorf("scan.concurrency must not be negative, got %d", c.Scan.Concurrency)
	}
	if _, err := manager.ParseFailurePolicy(c.Scan.OnError); err != nil {
		return fmt.Errorf("scan.on_error: %w", err)
	}
	if _, err := procfs.ResolveByteOrder(c.Scan.ByteOrder); err != nil {
		return fmt.Errorf("scan.byte_order: %w", err)
	}
	return nil
}
