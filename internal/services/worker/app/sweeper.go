package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/paywall/internal/platform/timeouts"
)

const (
	defaultPollInterval = time.Minute
	defaultBatchSize    = 100
	defaultMaxBatches   = 50
)

// Expirer expires members whose paid-through time has passed.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time, batch int) (int, error)
}

// Config controls the sweep loop.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxBatches bounds one sweep so a backlog cannot starve shutdown.
	MaxBatches int
}

func (c Config) normalized() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = defaultMaxBatches
	}
	return c
}

// Sweeper periodically expires due memberships.
type Sweeper struct {
	expirer Expirer
	cfg     Config
	clock   func() time.Time
	logf    func(string, ...any)
}

// New creates a sweeper. A nil clock uses time.Now.
func New(expirer Expirer, cfg Config, clock func() time.Time) *Sweeper {
	if clock == nil {
		clock = time.Now
	}
	return &Sweeper{
		expirer: expirer,
		cfg:     cfg.normalized(),
		clock:   clock,
		logf:    log.Printf,
	}
}

// Run sweeps once at start and then on every poll interval until ctx ends.
// Sweep failures are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s == nil || s.expirer == nil {
		return fmt.Errorf("sweeper is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if expired, err := s.Sweep(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logf("expiration sweep failed after %d members: %v", expired, err)
		} else if expired > 0 {
			s.logf("expiration sweep expired %d members", expired)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep expires due members in batches until a batch comes back short or
// the batch limit is reached.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	total := 0
	for range s.cfg.MaxBatches {
		batchCtx, cancel := context.WithTimeout(ctx, timeouts.SweepBatch)
		expired, err := s.expirer.ExpireDue(batchCtx, s.clock(), s.cfg.BatchSize)
		cancel()
		total += expired
		if err != nil {
			return total, err
		}
		if expired < s.cfg.BatchSize {
			return total, nil
		}
	}
	return total, nil
}
