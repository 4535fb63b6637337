package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxAccessLevel is the highest numeric access level a level can grant.
const MaxAccessLevel = 10

// LevelStatus controls whether a level accepts new signups.
type LevelStatus string

const (
	LevelStatusActive   LevelStatus = "active"
	LevelStatusInactive LevelStatus = "inactive"
)

// Level is a subscription plan in the catalog.
type Level struct {
	ID            string
	Name          string
	Description   string
	Duration      Duration
	TrialDuration Duration
	Price         decimal.Decimal
	Fee           decimal.Decimal
	AccessLevel   int
	Status        LevelStatus
	ListOrder     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NormalizeLevel trims text fields, defaults the status to active, and
// validates the result.
func NormalizeLevel(l Level) (Level, error) {
	l.ID = strings.TrimSpace(l.ID)
	l.Name = strings.TrimSpace(l.Name)
	l.Description = strings.TrimSpace(l.Description)
	if l.Status == "" {
		l.Status = LevelStatusActive
	}
	if l.Duration.IsUnlimited() {
		l.Duration = Duration{}
	}
	if l.TrialDuration.IsUnlimited() {
		l.TrialDuration = Duration{}
	}
	if err := l.Validate(); err != nil {
		return Level{}, err
	}
	return l, nil
}

// Validate checks the level invariants.
func (l Level) Validate() error {
	if l.Name == "" {
		return ErrLevelNameEmpty
	}
	if l.Duration.Validate() != nil || l.TrialDuration.Validate() != nil {
		return ErrLevelInvalidDuration
	}
	if l.Price.IsNegative() || l.Fee.IsNegative() {
		return ErrLevelInvalidPrice
	}
	if l.AccessLevel < 0 || l.AccessLevel > MaxAccessLevel {
		return ErrLevelInvalidAccessLevel
	}
	switch l.Status {
	case LevelStatusActive, LevelStatusInactive:
		return nil
	default:
		return ErrLevelInvalidStatus
	}
}

// IsFree reports whether the level costs nothing.
func (l Level) IsFree() bool {
	return l.Price.IsZero() && l.Fee.IsZero()
}

// HasTrial reports whether the level offers a trial period.
func (l Level) HasTrial() bool {
	return !l.TrialDuration.IsUnlimited() && !l.IsFree()
}

// IsActive reports whether the level accepts new signups.
func (l Level) IsActive() bool {
	return l.Status == LevelStatusActive
}

// Levels is the level catalog keyed by ID.
type Levels map[string]Level

// NewLevels indexes a level slice by ID.
func NewLevels(levels []Level) Levels {
	out := make(Levels, len(levels))
	for _, l := range levels {
		out[l.ID] = l
	}
	return out
}

// Lookup returns the level with id.
func (c Levels) Lookup(id string) (Level, bool) {
	if id == "" {
		return Level{}, false
	}
	l, ok := c[id]
	return l, ok
}

// AnyPriced reports whether any of ids names a level that is not free.
// Unknown IDs are ignored.
func (c Levels) AnyPriced(ids []string) bool {
	for _, id := range ids {
		if l, ok := c.Lookup(id); ok && !l.IsFree() {
			return true
		}
	}
	return false
}

// SortLevels orders levels by list order then name.
func SortLevels(levels []Level) {
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].ListOrder != levels[j].ListOrder {
			return levels[i].ListOrder < levels[j].ListOrder
		}
		return levels[i].Name < levels[j].Name
	})
}
