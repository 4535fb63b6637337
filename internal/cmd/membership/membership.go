// Package membership parses membership command flags and launches the API
// server.
package membership

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/paywall/internal/platform/cmd"
	server "github.com/louisbranch/paywall/internal/services/membership/app"
)

// Config holds membership command configuration.
type Config struct {
	HTTPAddr       string        `env:"PAYWALL_MEMBERSHIP_HTTP_ADDR" envDefault:":8080"`
	HealthAddr     string        `env:"PAYWALL_MEMBERSHIP_HEALTH_ADDR" envDefault:":8081"`
	DBPath         string        `env:"PAYWALL_MEMBERSHIP_DB_PATH" envDefault:"data/membership.db"`
	PolicyScript   string        `env:"PAYWALL_ACCESS_POLICY_SCRIPT"`
	LevelCacheSize int           `env:"PAYWALL_LEVEL_CACHE_SIZE" envDefault:"256"`
	LevelCacheTTL  time.Duration `env:"PAYWALL_LEVEL_CACHE_TTL" envDefault:"1m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The membership HTTP API address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "The gRPC health server address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The membership SQLite database path")
	fs.StringVar(&cfg.PolicyScript, "policy-script", cfg.PolicyScript, "Optional Lua access policy script")
	fs.IntVar(&cfg.LevelCacheSize, "level-cache-size", cfg.LevelCacheSize, "Maximum cached subscription levels")
	fs.DurationVar(&cfg.LevelCacheTTL, "level-cache-ttl", cfg.LevelCacheTTL, "Subscription level cache TTL")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the membership server.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMembership, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			HTTPAddr:       cfg.HTTPAddr,
			HealthAddr:     cfg.HealthAddr,
			DBPath:         cfg.DBPath,
			PolicyScript:   cfg.PolicyScript,
			LevelCacheSize: cfg.LevelCacheSize,
			LevelCacheTTL:  cfg.LevelCacheTTL,
		})
	})
}
