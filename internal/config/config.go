// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New builds a Config with defaults; Load layers a YAML file and env on top.
//   - Validate reports every problem wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Storage selects the snapshot repository backend: memory or sqlite.
	Storage string `koanf:"storage"`

	// SQLitePath is the database file used when Storage is sqlite.
	SQLitePath string `koanf:"sqlite_path"`

	// SnapshotPath optionally names a YAML snapshot loaded at startup.
	SnapshotPath string `koanf:"snapshot_path"`

	// MaxSessions bounds the number of live simulation sessions.
	MaxSessions int `koanf:"max_sessions"`

	// BatchConcurrency bounds parallel contracts in batch recomputation.
	BatchConcurrency int `koanf:"batch_concurrency"`

	// RecommendationLimit caps ranked measures when a request sets no limit.
	RecommendationLimit int `koanf:"recommendation_limit"`

	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `koanf:"cors_origins"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		Storage:          StorageMemory,
		SQLitePath:       "starsim.db",
		MaxSessions:      1024,
		BatchConcurrency: runtime.NumCPU(),
		CORSOrigins:      []string{"*"},

		RecommendationLimit: 10,
	}
}

// Validate checks field values and returns an error wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "addr must not be empty")
	}
	switch c.Storage {
	case StorageMemory:
	case StorageSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			problems = append(problems, "sqlite_path must not be empty for sqlite storage")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage %q", c.Storage))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log_format %q", c.LogFormat))
	}
	if c.MaxSessions <= 0 {
		problems = append(problems, "max_sessions must be positive")
	}
	if c.BatchConcurrency <= 0 {
		problems = append(problems, "batch_concurrency must be positive")
	}
	if c.RecommendationLimit <= 0 {
		problems = append(problems, "recommendation_limit must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
