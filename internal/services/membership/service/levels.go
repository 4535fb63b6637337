package service

import (
	"context"
	"strings"

	"github.com/louisbranch/paywall/internal/platform/id"
	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"go.opentelemetry.io/otel/attribute"
)

// CreateLevel validates and stores a new level. An empty ID is generated.
func (s *Service) CreateLevel(ctx context.Context, level domain.Level) (_ domain.Level, err error) {
	ctx, span := startSpan(ctx, "create_level", attribute.String(traceAttrLevelID, level.ID))
	defer func() { endSpan(span, err) }()
	if err := s.ready(); err != nil {
		return domain.Level{}, err
	}

	level, err = domain.NormalizeLevel(level)
	if err != nil {
		return domain.Level{}, err
	}
	if level.ID == "" {
		level.ID, err = id.NewPrefixed("lvl")
		if err != nil {
			return domain.Level{}, err
		}
	}
	now := s.now()
	level.CreatedAt = now
	level.UpdatedAt = now
	if err := s.store.CreateLevel(ctx, level); err != nil {
		return domain.Level{}, storeError(err, "level")
	}
	s.levels.purge()
	return level, nil
}

// UpdateLevel replaces an existing level, keeping its creation time.
func (s *Service) UpdateLevel(ctx context.Context, level domain.Level) (_ domain.Level, err error) {
	ctx, span := startSpan(ctx, "update_level", attribute.String(traceAttrLevelID, level.ID))
	defer func() { endSpan(span, err) }()
	if err := s.ready(); err != nil {
		return domain.Level{}, err
	}
	if strings.TrimSpace(level.ID) == "" {
		return domain.Level{}, invalidArgument("level id is required")
	}

	level, err = domain.NormalizeLevel(level)
	if err != nil {
		return domain.Level{}, err
	}
	current, err := s.store.GetLevel(ctx, level.ID)
	if err != nil {
		return domain.Level{}, storeError(err, "level")
	}
	level.CreatedAt = current.CreatedAt
	level.UpdatedAt = s.now()
	if err := s.store.UpdateLevel(ctx, level); err != nil {
		return domain.Level{}, storeError(err, "level")
	}
	s.levels.purge()
	return level, nil
}

// GetLevel returns one level.
func (s *Service) GetLevel(ctx context.Context, levelID string) (domain.Level, error) {
	if err := s.ready(); err != nil {
		return domain.Level{}, err
	}
	levelID = strings.TrimSpace(levelID)
	if levelID == "" {
		return domain.Level{}, invalidArgument("level id is required")
	}
	level, err := s.levels.get(ctx, levelID)
	if err != nil {
		return domain.Level{}, storeError(err, "level")
	}
	return level, nil
}

// ListLevels returns the catalog in display order.
func (s *Service) ListLevels(ctx context.Context) ([]domain.Level, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	levels, err := s.levels.list(ctx)
	if err != nil {
		return nil, storeError(err, "levels")
	}
	return levels, nil
}
