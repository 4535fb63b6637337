package domain

import (
	"strings"
	"time"
)

const (
	ReasonAllowUnrestricted      = "ALLOW_UNRESTRICTED"
	ReasonAllowAdmin             = "ALLOW_ADMIN"
	ReasonAllowAuthor            = "ALLOW_AUTHOR"
	ReasonAllowMembership        = "ALLOW_MEMBERSHIP"
	ReasonDenyNoMembership       = "DENY_NO_MEMBERSHIP"
	ReasonDenyPaidOnly           = "DENY_PAID_ONLY"
	ReasonDenyLevelRequired      = "DENY_LEVEL_REQUIRED"
	ReasonDenyMembershipInactive = "DENY_MEMBERSHIP_INACTIVE"
	ReasonDenyAccessLevel        = "DENY_ACCESS_LEVEL"
	ReasonDenyRole               = "DENY_ROLE"
	ReasonDenyTermRestricted     = "DENY_TERM_RESTRICTED"
)

// Viewer is the user asking to see content.
type Viewer struct {
	UserID  string
	Roles   []string
	IsAdmin bool
}

// Decision is the outcome of an access evaluation.
type Decision struct {
	Allowed    bool
	ReasonCode string
}

func allow(reason string) Decision { return Decision{Allowed: true, ReasonCode: reason} }

func deny(reason string) Decision { return Decision{Allowed: false, ReasonCode: reason} }

// Input carries everything one access evaluation needs.
type Input struct {
	Viewer  Viewer
	Member  *Member
	Levels  Levels
	Content ContentRestriction
	Terms   []TermRestriction
	Now     time.Time
}

// Evaluate decides whether the viewer may see the content. Rules run in a
// fixed order and the first terminal rule wins; term restrictions can only
// narrow a decision the content rules already allowed.
func Evaluate(in Input) Decision {
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	terms := restrictedTerms(in.Terms)
	if !in.Content.IsRestricted() && len(terms) == 0 {
		return allow(ReasonAllowUnrestricted)
	}
	if in.Viewer.IsAdmin {
		return allow(ReasonAllowAdmin)
	}
	userID := strings.TrimSpace(in.Viewer.UserID)
	if userID != "" && userID == in.Content.AuthorID {
		return allow(ReasonAllowAuthor)
	}
	if userID == "" {
		return deny(ReasonDenyNoMembership)
	}
	member := in.Member
	if member != nil && member.UserID != userID {
		member = nil
	}
	if member == nil {
		return deny(ReasonDenyNoMembership)
	}

	state := memberState{now: now, member: *member}
	state.level, state.hasLevel = in.Levels.Lookup(member.LevelID)
	state.paid = state.hasLevel && member.IsPaid(now, state.level)

	if in.Content.PaidOnly && !state.paid {
		return deny(ReasonDenyPaidOnly)
	}
	if reason, ok := checkLevelRequirement(in.Content.Levels, in.Levels, state); !ok {
		return deny(reason)
	}
	if in.Content.AccessLevel > 0 && !state.meetsAccessLevel(in.Content.AccessLevel) {
		return deny(ReasonDenyAccessLevel)
	}
	if len(in.Content.Roles) > 0 && !hasAnyRole(in.Viewer.Roles, in.Content.Roles) {
		return deny(ReasonDenyRole)
	}
	for _, term := range terms {
		if !state.satisfiesTerm(term) {
			return deny(ReasonDenyTermRestricted)
		}
	}
	return allow(ReasonAllowMembership)
}

type memberState struct {
	now      time.Time
	member   Member
	level    Level
	hasLevel bool
	paid     bool
}

func (s memberState) unexpired() bool {
	return !s.member.IsExpired(s.now)
}

func (s memberState) meetsAccessLevel(required int) bool {
	return s.hasLevel && s.unexpired() && s.level.AccessLevel >= required
}

// satisfiesTerm also requires an unexpired member for a term level list,
// matching the content list rule for free levels.
func (s memberState) satisfiesTerm(term TermRestriction) bool {
	if term.PaidOnly && !s.paid {
		return false
	}
	if len(term.LevelIDs) > 0 && (!containsID(term.LevelIDs, s.member.LevelID) || !s.unexpired()) {
		return false
	}
	if term.AccessLevel > 0 && !s.meetsAccessLevel(term.AccessLevel) {
		return false
	}
	return true
}

func checkLevelRequirement(req LevelRequirement, catalog Levels, s memberState) (string, bool) {
	switch req.Mode {
	case LevelModeNone:
		return "", true
	case LevelModeAny:
		if !s.member.HasLevel() {
			return ReasonDenyLevelRequired, false
		}
		if !s.unexpired() {
			return ReasonDenyMembershipInactive, false
		}
		return "", true
	case LevelModeAnyPaid:
		if s.paid {
			return "", true
		}
		if s.hasLevel && !s.level.IsFree() {
			return ReasonDenyMembershipInactive, false
		}
		return ReasonDenyLevelRequired, false
	case LevelModeList:
		if !containsID(req.LevelIDs, s.member.LevelID) {
			return ReasonDenyLevelRequired, false
		}
		if catalog.AnyPriced(req.LevelIDs) {
			if !s.member.IsActive(s.now) {
				return ReasonDenyMembershipInactive, false
			}
			return "", true
		}
		if !s.unexpired() {
			return ReasonDenyMembershipInactive, false
		}
		return "", true
	default:
		return ReasonDenyLevelRequired, false
	}
}

func restrictedTerms(terms []TermRestriction) []TermRestriction {
	out := make([]TermRestriction, 0, len(terms))
	for _, term := range terms {
		if !term.IsEmpty() {
			out = append(out, term)
		}
	}
	return out
}

func hasAnyRole(held, allowed []string) bool {
	for _, role := range held {
		if containsID(allowed, strings.TrimSpace(role)) {
			return true
		}
	}
	return false
}
