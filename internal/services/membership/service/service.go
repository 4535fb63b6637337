// Package service implements the membership use cases on top of the domain
// rules and the membership store.
package service

import (
	"errors"
	"time"

	"github.com/louisbranch/paywall/internal/platform/telemetry/metrics"
	"github.com/louisbranch/paywall/internal/services/membership/grant"
	"github.com/louisbranch/paywall/internal/services/membership/policyscript"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
)

const (
	defaultLevelCacheSize = 256
	defaultLevelCacheTTL  = time.Minute
	defaultExpireBatch    = 100
)

// Options configures optional collaborators.
type Options struct {
	// Grants signs and verifies access grants. Grants are disabled when
	// GrantsEnabled is false.
	Grants        grant.Config
	GrantsEnabled bool
	// Policy, when set, may override built-in access decisions.
	Policy  *policyscript.Engine
	Metrics *metrics.Metrics
	// LevelCacheSize and LevelCacheTTL bound the level read cache.
	LevelCacheSize int
	LevelCacheTTL  time.Duration
	Clock          func() time.Time
}

// Service orchestrates membership use cases.
type Service struct {
	store         storage.Store
	levels        *levelCache
	grants        grant.Config
	grantsEnabled bool
	policy        *policyscript.Engine
	metrics       *metrics.Metrics
	clock         func() time.Time
}

// New creates a membership service backed by store.
func New(store storage.Store, opts Options) *Service {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Default()
	}
	size := opts.LevelCacheSize
	if size <= 0 {
		size = defaultLevelCacheSize
	}
	ttl := opts.LevelCacheTTL
	if ttl <= 0 {
		ttl = defaultLevelCacheTTL
	}
	grants := opts.Grants
	if grants.Now == nil {
		grants.Now = clock
	}
	return &Service{
		store:         store,
		levels:        newLevelCache(store, size, ttl, m),
		grants:        grants,
		grantsEnabled: opts.GrantsEnabled,
		policy:        opts.Policy,
		metrics:       m,
		clock:         clock,
	}
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return errors.New("membership store is not configured")
	}
	return nil
}
