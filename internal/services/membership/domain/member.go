package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the membership lifecycle label.
type Status string

const (
	StatusNone      Status = ""
	StatusFree      Status = "free"
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// ParseStatus canonicalizes a status label.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "free":
		return StatusFree, nil
	case "pending":
		return StatusPending, nil
	case "active":
		return StatusActive, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	case "expired":
		return StatusExpired, nil
	default:
		return StatusNone, fmt.Errorf("unknown member status %q", value)
	}
}

// Label returns the status name, or "none" for a missing membership.
func (s Status) Label() string {
	if s == StatusNone {
		return "none"
	}
	return string(s)
}

// isStatusTransitionAllowed enforces the membership lifecycle.
func isStatusTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusNone:
		return to == StatusFree || to == StatusPending
	case StatusFree:
		return to == StatusPending || to == StatusActive || to == StatusExpired
	case StatusPending:
		return to == StatusActive || to == StatusFree || to == StatusExpired
	case StatusActive:
		return to == StatusCancelled || to == StatusExpired || to == StatusActive
	case StatusCancelled:
		return to == StatusActive || to == StatusExpired
	case StatusExpired:
		return to == StatusPending || to == StatusActive || to == StatusFree
	default:
		return false
	}
}

// IsStatusTransitionAllowed reports whether a status transition is permitted.
func IsStatusTransitionAllowed(from, to Status) bool {
	return isStatusTransitionAllowed(from, to)
}

// Member is one user's membership.
type Member struct {
	UserID     string
	LevelID    string
	Status     Status
	ExpiresAt  time.Time
	Recurring  bool
	Trialing   bool
	HasTrialed bool
	LastPaidAt time.Time
	JoinedAt   time.Time
	UpdatedAt  time.Time
}

// HasLevel reports whether the member points at a level.
func (m Member) HasLevel() bool {
	return m.LevelID != ""
}

// HasExpiration reports whether the membership ends at some instant.
func (m Member) HasExpiration() bool {
	return !m.ExpiresAt.IsZero()
}

// IsExpired reports whether the membership has lapsed at now.
func (m Member) IsExpired(now time.Time) bool {
	if m.Status == StatusExpired {
		return true
	}
	return m.HasExpiration() && now.After(m.ExpiresAt)
}

// IsActive reports whether the member holds paid-through access at now.
// Cancelled members stay active until their expiration.
func (m Member) IsActive(now time.Time) bool {
	if m.Status != StatusActive && m.Status != StatusCancelled {
		return false
	}
	return !m.IsExpired(now)
}

// IsTrialing reports whether the member is inside an active trial.
func (m Member) IsTrialing(now time.Time) bool {
	return m.Trialing && m.IsActive(now)
}

// IsPaid reports whether the member is active on a priced level.
func (m Member) IsPaid(now time.Time, level Level) bool {
	return m.IsActive(now) && m.LevelID == level.ID && !level.IsFree()
}

// DueForExpiry reports whether the sweeper should expire the member.
func (m Member) DueForExpiry(now time.Time) bool {
	switch m.Status {
	case StatusActive, StatusCancelled, StatusFree:
		return m.HasExpiration() && now.After(m.ExpiresAt)
	default:
		return false
	}
}

// TrialEligible reports whether activating level would start a trial.
func (m Member) TrialEligible(level Level) bool {
	return level.HasTrial() && !m.HasTrialed
}

// SetStatus moves the member to status. Setting the current status is a
// no-op reported as unchanged, except active which counts as a renewal.
func SetStatus(m Member, to Status, now time.Time) (Member, bool, error) {
	if m.Status == to && to != StatusActive {
		return m, false, nil
	}
	if !isStatusTransitionAllowed(m.Status, to) {
		return m, false, invalidTransitionError(m.Status, to)
	}
	m.Status = to
	m.UpdatedAt = now
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	return m, true, nil
}

// NextExpiration returns the expiration a payment for level would grant at
// now. The current expiration is the base when the member is still active on
// the same level; otherwise the base is now. Trial-eligible members get the
// trial duration instead of the level duration.
func NextExpiration(m Member, level Level, now time.Time) (time.Time, bool) {
	if m.TrialEligible(level) {
		return CalculateExpiration(level.TrialDuration, now)
	}
	return CalculateExpiration(level.Duration, renewalBase(m, level.ID, now))
}

func renewalBase(m Member, levelID string, now time.Time) time.Time {
	if m.LevelID == levelID && m.IsActive(now) && m.HasExpiration() && m.ExpiresAt.After(now) {
		return m.ExpiresAt
	}
	return now
}

// Signup starts a membership on level. A free level takes effect at once.
// A paid level moves the member to pending until payment; active and
// cancelled members keep their status and current level.
func Signup(m Member, level Level, now time.Time) (Member, error) {
	if strings.TrimSpace(m.UserID) == "" {
		return m, ErrMemberUserIDEmpty
	}
	if !level.IsActive() {
		return m, levelInactiveError(level.ID)
	}
	if level.IsFree() {
		next, _, err := SetStatus(m, StatusFree, now)
		if err != nil {
			return m, err
		}
		next.LevelID = level.ID
		next.ExpiresAt, _ = CalculateExpiration(level.Duration, now)
		next.Recurring = false
		next.Trialing = false
		next.UpdatedAt = now
		return next, nil
	}
	if m.Status == StatusActive || m.Status == StatusCancelled {
		return m, nil
	}
	next, _, err := SetStatus(m, StatusPending, now)
	if err != nil {
		return m, err
	}
	return next, nil
}

// Activate applies a completed payment for level.
func Activate(m Member, level Level, now time.Time, recurring bool) (Member, error) {
	if strings.TrimSpace(m.UserID) == "" {
		return m, ErrMemberUserIDEmpty
	}
	if level.ID == "" {
		return m, ErrMemberNoLevel
	}
	if level.IsFree() {
		return m, statusDisallowsError(m.Status, "paid activation of a free level")
	}
	trial := m.TrialEligible(level)
	expiresAt, _ := NextExpiration(m, level, now)
	next, _, err := SetStatus(m, StatusActive, now)
	if err != nil {
		return m, err
	}
	next.LevelID = level.ID
	next.ExpiresAt = expiresAt
	next.Recurring = recurring
	next.Trialing = trial
	next.HasTrialed = m.HasTrialed || trial
	next.LastPaidAt = now
	return next, nil
}

// Renew extends the member on level after a renewal payment.
func Renew(m Member, level Level, now time.Time, recurring bool) (Member, error) {
	if !m.HasLevel() {
		return m, ErrMemberNoLevel
	}
	switch m.Status {
	case StatusActive, StatusCancelled, StatusExpired:
	default:
		return m, statusDisallowsError(m.Status, "renew")
	}
	expiresAt, _ := CalculateExpiration(level.Duration, renewalBase(m, level.ID, now))
	next, _, err := SetStatus(m, StatusActive, now)
	if err != nil {
		return m, err
	}
	next.LevelID = level.ID
	next.ExpiresAt = expiresAt
	next.Recurring = recurring
	next.Trialing = false
	next.LastPaidAt = now
	return next, nil
}

// Cancel stops recurring billing. Access continues until the expiration.
func Cancel(m Member, now time.Time) (Member, error) {
	if m.Status != StatusActive && m.Status != StatusCancelled {
		return m, statusDisallowsError(m.Status, "cancel")
	}
	next, _, err := SetStatus(m, StatusCancelled, now)
	if err != nil {
		return m, err
	}
	next.Recurring = false
	next.UpdatedAt = now
	return next, nil
}

// Expire ends the membership.
func Expire(m Member, now time.Time) (Member, error) {
	next, changed, err := SetStatus(m, StatusExpired, now)
	if err != nil || !changed {
		return next, err
	}
	next.Trialing = false
	next.Recurring = false
	return next, nil
}

// RevertPending rolls back an abandoned checkout. Members that never paid
// fall back to free; the rest become expired.
func RevertPending(m Member, now time.Time) (Member, error) {
	if m.Status != StatusPending {
		return m, statusDisallowsError(m.Status, "revert pending checkout")
	}
	to := StatusFree
	if !m.LastPaidAt.IsZero() {
		to = StatusExpired
	}
	next, _, err := SetStatus(m, to, now)
	return next, err
}
