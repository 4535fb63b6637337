package domain

import (
	"sort"
	"strings"
)

// LevelMode selects how a restriction matches member levels.
type LevelMode string

const (
	LevelModeNone    LevelMode = ""
	LevelModeAny     LevelMode = "any"
	LevelModeAnyPaid LevelMode = "any-paid"
	LevelModeList    LevelMode = "list"
)

// ParseLevelMode canonicalizes a level requirement mode.
func ParseLevelMode(value string) (LevelMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return LevelModeNone, nil
	case "any", "all":
		return LevelModeAny, nil
	case "any-paid", "any_paid", "paid":
		return LevelModeAnyPaid, nil
	case "list", "some":
		return LevelModeList, nil
	default:
		return LevelModeNone, ErrRestrictionInvalidMode
	}
}

// LevelRequirement names the levels that may view restricted content.
type LevelRequirement struct {
	Mode     LevelMode
	LevelIDs []string
}

// ContentRestriction is the access metadata of one content item.
type ContentRestriction struct {
	ContentID   string
	AuthorID    string
	Levels      LevelRequirement
	AccessLevel int
	PaidOnly    bool
	Roles       []string
	TermIDs     []string
}

// IsRestricted reports whether the content carries any rule of its own.
func (c ContentRestriction) IsRestricted() bool {
	return c.Levels.Mode != LevelModeNone || c.AccessLevel > 0 || c.PaidOnly || len(c.Roles) > 0
}

// NormalizeContentRestriction trims and dedupes identifiers and validates
// the level requirement and access level.
func NormalizeContentRestriction(c ContentRestriction) (ContentRestriction, error) {
	c.ContentID = strings.TrimSpace(c.ContentID)
	c.AuthorID = strings.TrimSpace(c.AuthorID)
	c.Roles = normalizeIDs(c.Roles)
	c.TermIDs = normalizeIDs(c.TermIDs)
	levels, err := normalizeLevelRequirement(c.Levels)
	if err != nil {
		return ContentRestriction{}, err
	}
	c.Levels = levels
	if c.AccessLevel < 0 || c.AccessLevel > MaxAccessLevel {
		return ContentRestriction{}, ErrRestrictionInvalidAccessLevel
	}
	return c, nil
}

func normalizeLevelRequirement(r LevelRequirement) (LevelRequirement, error) {
	switch r.Mode {
	case LevelModeNone, LevelModeAny, LevelModeAnyPaid:
		return LevelRequirement{Mode: r.Mode}, nil
	case LevelModeList:
		ids := normalizeIDs(r.LevelIDs)
		if len(ids) == 0 {
			return LevelRequirement{}, ErrRestrictionLevelsRequired
		}
		return LevelRequirement{Mode: LevelModeList, LevelIDs: ids}, nil
	default:
		return LevelRequirement{}, ErrRestrictionInvalidMode
	}
}

// TermRestriction is the access metadata of one taxonomy term. Content
// tagged with the term inherits it.
type TermRestriction struct {
	TermID      string
	PaidOnly    bool
	LevelIDs    []string
	AccessLevel int
}

// IsEmpty reports whether the term restricts nothing.
func (t TermRestriction) IsEmpty() bool {
	return !t.PaidOnly && len(t.LevelIDs) == 0 && t.AccessLevel <= 0
}

// NormalizeTermRestriction trims and dedupes level IDs and validates the
// access level.
func NormalizeTermRestriction(t TermRestriction) (TermRestriction, error) {
	t.TermID = strings.TrimSpace(t.TermID)
	t.LevelIDs = normalizeIDs(t.LevelIDs)
	if t.AccessLevel < 0 || t.AccessLevel > MaxAccessLevel {
		return TermRestriction{}, ErrRestrictionInvalidAccessLevel
	}
	return t, nil
}

func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func containsID(ids []string, id string) bool {
	if id == "" {
		return false
	}
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
