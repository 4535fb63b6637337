// Package worker parses worker command flags and launches the expiration
// sweeper.
package worker

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/paywall/internal/platform/cmd"
	workerserver "github.com/louisbranch/paywall/internal/services/worker/app"
)

// Config holds worker command configuration.
type Config struct {
	HealthAddr   string        `env:"PAYWALL_WORKER_HEALTH_ADDR" envDefault:":8089"`
	DBPath       string        `env:"PAYWALL_MEMBERSHIP_DB_PATH" envDefault:"data/membership.db"`
	PollInterval time.Duration `env:"PAYWALL_WORKER_POLL_INTERVAL" envDefault:"1m"`
	BatchSize    int           `env:"PAYWALL_WORKER_BATCH_SIZE" envDefault:"100"`
	MaxBatches   int           `env:"PAYWALL_WORKER_MAX_BATCHES" envDefault:"50"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "The worker gRPC health server address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The membership SQLite database path")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Expiration sweep interval")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Members expired per sweep batch")
	fs.IntVar(&cfg.MaxBatches, "max-batches", cfg.MaxBatches, "Maximum batches per sweep")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		return workerserver.Run(ctx, workerserver.RuntimeConfig{
			HealthAddr:   cfg.HealthAddr,
			DBPath:       cfg.DBPath,
			PollInterval: cfg.PollInterval,
			BatchSize:    cfg.BatchSize,
			MaxBatches:   cfg.MaxBatches,
		})
	})
}
