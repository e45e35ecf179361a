package monitorconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the Monitor process's runtime settings. Defaults match
// spec.md §6's constants table.
type Config struct {
	WatchedAddress string `env:"WATCHED_ADDRESS,required"`
	ExplorerBaseURL string `env:"EXPLORER_BASE_URL,required"`

	Port int `env:"PORT" envDefault:"8081"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"./bitbar-monitor.db"`

	PollIntervalMs      int `env:"POLL_INTERVAL_MS" envDefault:"10000"`
	UpstreamTimeoutMs   int `env:"UPSTREAM_TIMEOUT_MS" envDefault:"5000"`
	EligibilityThresholdSats int64 `env:"ELIGIBILITY_THRESHOLD_SATS" envDefault:"1641"`

	// RetentionDays is the horizon for the optional retention sweep
	// (spec.md §9(c)). Zero disables the sweep, the default.
	RetentionDays int `env:"RETENTION_DAYS" envDefault:"0"`
}

// Load reads the Monitor's configuration from the environment, loading
// a .env file first when present (a no-op in production deployments
// where none exists).
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, relying on environment variables")
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing monitor config: %w", err)
	}
	return cfg, nil
}

// PollInterval is PollIntervalMs as a time.Duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// UpstreamTimeout is UpstreamTimeoutMs as a time.Duration.
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMs) * time.Millisecond
}

// RetentionEnabled reports whether the optional retention sweep should run.
func (c Config) RetentionEnabled() bool {
	return c.RetentionDays > 0
}
