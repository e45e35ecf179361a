package workerconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the Minter Worker process's runtime settings. Defaults
// match spec.md §6's constants table.
type Config struct {
	ServerURL string `env:"SERVER_URL" envDefault:"http://localhost:8081"`

	Port int `env:"WORKER_PORT" envDefault:"8082"`

	WorkerIntervalMs  int `env:"WORKER_INTERVAL_MS" envDefault:"30000"`
	MaxRetries        int `env:"MAX_RETRIES" envDefault:"3"`
	RetryBackoffMs    int `env:"RETRY_BACKOFF_MS" envDefault:"5000"`
	InterDispatchMs   int `env:"INTER_DISPATCH_MS" envDefault:"1000"`
	UpstreamTimeoutMs int `env:"UPSTREAM_TIMEOUT_MS" envDefault:"5000"`

	// InscriptionCommandTemplate substitutes {wallet}, {file}, {destination}.
	InscriptionCommandTemplate string `env:"INSCRIPTION_COMMAND_TEMPLATE" envDefault:"ord wallet --name {wallet} inscribe --fee-rate 1 --destination {destination} --file {file}"`

	JournalPath string `env:"JOURNAL_PATH" envDefault:"./mints.json"`
	LogPath     string `env:"LOG_PATH" envDefault:"./minting-service.log"`

	// JournalRotateBytes rotates and zstd-archives the journal once it
	// grows past this size (spec.md §4.7 crash-safety requirement).
	JournalRotateBytes int64 `env:"JOURNAL_ROTATE_BYTES" envDefault:"1048576"`
}

// Load reads the Worker's configuration from the environment, loading a
// .env file first when present.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, relying on environment variables")
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing worker config: %w", err)
	}
	return cfg, nil
}

// WorkerInterval is WorkerIntervalMs as a time.Duration.
func (c Config) WorkerInterval() time.Duration {
	return time.Duration(c.WorkerIntervalMs) * time.Millisecond
}

// RetryBackoff is RetryBackoffMs as a time.Duration.
func (c Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryBackoffMs) * time.Millisecond
}

// InterDispatchDelay is InterDispatchMs as a time.Duration.
func (c Config) InterDispatchDelay() time.Duration {
	return time.Duration(c.InterDispatchMs) * time.Millisecond
}

// UpstreamTimeout is UpstreamTimeoutMs as a time.Duration, used for the
// Worker's HTTP client talking to the Monitor.
func (c Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutMs) * time.Millisecond
}
