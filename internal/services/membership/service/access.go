package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/paywall/internal/platform/errors"
	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/grant"
	"github.com/louisbranch/paywall/internal/services/membership/policyscript"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
	"go.opentelemetry.io/otel/attribute"
)

// AccessRequest asks whether a viewer may see one content item.
type AccessRequest struct {
	Viewer     domain.Viewer
	ContentID  string
	IssueGrant bool
}

// AccessResult is the decision and, when requested and allowed, a signed
// grant the content host can verify offline.
type AccessResult struct {
	Decision       domain.Decision
	Grant          string
	GrantExpiresAt time.Time
}

// CheckAccess evaluates the content rules for the viewer. A loaded policy
// script sees the built-in decision and may replace it.
func (s *Service) CheckAccess(ctx context.Context, req AccessRequest) (_ AccessResult, err error) {
	ctx, span := startSpan(ctx, "check_access",
		attribute.String(traceAttrUserID, req.Viewer.UserID),
		attribute.String(traceAttrContentID, req.ContentID),
	)
	defer func() { endSpan(span, err) }()
	if err := s.ready(); err != nil {
		return AccessResult{}, err
	}

	restriction, err := s.GetContentRestriction(ctx, req.ContentID)
	if err != nil {
		return AccessResult{}, err
	}
	terms, err := s.store.ListTermRestrictions(ctx, restriction.TermIDs)
	if err != nil {
		return AccessResult{}, storeError(err, "term restrictions")
	}
	catalog, err := s.levels.all(ctx)
	if err != nil {
		return AccessResult{}, storeError(err, "levels")
	}

	viewer := req.Viewer
	viewer.UserID = strings.TrimSpace(viewer.UserID)
	var member *domain.Member
	if viewer.UserID != "" {
		found, err := s.store.GetMember(ctx, viewer.UserID)
		switch {
		case err == nil:
			member = &found
		case !errors.Is(err, storage.ErrNotFound):
			return AccessResult{}, storeError(err, "member")
		}
	}

	now := s.now()
	decision := domain.Evaluate(domain.Input{
		Viewer:  viewer,
		Member:  member,
		Levels:  catalog,
		Content: restriction,
		Terms:   terms,
		Now:     now,
	})
	decision = s.applyPolicy(restriction.ContentID, viewer, member, catalog, decision)
	span.SetAttributes(attribute.String("paywall.reason", decision.ReasonCode))
	s.metrics.ObserveAccessDecision(decision.Allowed, decision.ReasonCode)

	result := AccessResult{Decision: decision}
	if !req.IssueGrant || !decision.Allowed || viewer.UserID == "" {
		return result, nil
	}
	if !s.grantsEnabled {
		return AccessResult{}, grantsDisabledError()
	}
	grantReq := grant.Request{UserID: viewer.UserID, ContentID: restriction.ContentID}
	if member != nil && decision.ReasonCode == domain.ReasonAllowMembership {
		grantReq.LevelID = member.LevelID
		grantReq.MemberExpiresAt = member.ExpiresAt
	}
	token, claims, err := grant.Issue(grantReq, s.grants)
	if err != nil {
		return AccessResult{}, err
	}
	result.Grant = token
	result.GrantExpiresAt = claims.ExpiresAt
	return result, nil
}

// VerifyGrant checks a grant token issued for contentID.
func (s *Service) VerifyGrant(ctx context.Context, token, contentID string) (_ grant.Claims, err error) {
	_, span := startSpan(ctx, "verify_grant", attribute.String(traceAttrContentID, contentID))
	defer func() { endSpan(span, err) }()
	if !s.grantsEnabled {
		return grant.Claims{}, grantsDisabledError()
	}
	return grant.Validate(token, strings.TrimSpace(contentID), s.grants)
}

func (s *Service) applyPolicy(contentID string, viewer domain.Viewer, member *domain.Member, catalog domain.Levels, decision domain.Decision) domain.Decision {
	if s.policy == nil {
		return decision
	}
	req := policyscript.Request{
		UserID:    viewer.UserID,
		ContentID: contentID,
		Allowed:   decision.Allowed,
		Reason:    decision.ReasonCode,
	}
	if member != nil {
		req.LevelID = member.LevelID
		req.Status = string(member.Status)
		if level, ok := catalog.Lookup(member.LevelID); ok {
			req.AccessLevel = level.AccessLevel
		}
	}
	result, err := s.policy.Decide(req)
	if err != nil {
		log.Printf("access policy %s: %v", s.policy.Name(), err)
		return decision
	}
	return domain.Decision{Allowed: result.Allowed, ReasonCode: result.Reason}
}

func grantsDisabledError() error {
	return apperrors.New(apperrors.CodeGrantNotConfigured, "access grants are not configured")
}
