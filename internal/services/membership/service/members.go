package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
	"go.opentelemetry.io/otel/attribute"
)

// GetMember returns one user's membership.
func (s *Service) GetMember(ctx context.Context, userID string) (domain.Member, error) {
	if err := s.ready(); err != nil {
		return domain.Member{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Member{}, domain.ErrMemberUserIDEmpty
	}
	member, err := s.store.GetMember(ctx, userID)
	if err != nil {
		return domain.Member{}, storeError(err, "member")
	}
	return member, nil
}

// ListMembers returns one filtered page of members.
func (s *Service) ListMembers(ctx context.Context, req storage.ListMembersRequest) (storage.MemberPage, error) {
	if err := s.ready(); err != nil {
		return storage.MemberPage{}, err
	}
	page, err := s.store.ListMembers(ctx, req)
	if err != nil {
		return storage.MemberPage{}, storeError(err, "members")
	}
	return page, nil
}

// ListMemberPayments returns the newest payments of one user.
func (s *Service) ListMemberPayments(ctx context.Context, userID string, limit int) ([]domain.Payment, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrMemberUserIDEmpty
	}
	payments, err := s.store.ListMemberPayments(ctx, userID, limit)
	if err != nil {
		return nil, storeError(err, "payments")
	}
	return payments, nil
}

// CancelMember stops recurring billing. Access continues until the
// current expiration.
func (s *Service) CancelMember(ctx context.Context, userID string) (_ domain.Member, err error) {
	ctx, span := startSpan(ctx, "cancel_member", attribute.String(traceAttrUserID, userID))
	defer func() { endSpan(span, err) }()
	return s.transition(ctx, userID, domain.Cancel)
}

// ExpireMember ends a membership now.
func (s *Service) ExpireMember(ctx context.Context, userID string) (_ domain.Member, err error) {
	ctx, span := startSpan(ctx, "expire_member", attribute.String(traceAttrUserID, userID))
	defer func() { endSpan(span, err) }()
	return s.transition(ctx, userID, domain.Expire)
}

func (s *Service) transition(ctx context.Context, userID string, apply func(domain.Member, time.Time) (domain.Member, error)) (domain.Member, error) {
	member, err := s.GetMember(ctx, userID)
	if err != nil {
		return domain.Member{}, err
	}
	next, err := apply(member, s.now())
	if err != nil {
		return domain.Member{}, err
	}
	if next.Status == member.Status && next.UpdatedAt.Equal(member.UpdatedAt) {
		return member, nil
	}
	if err := s.store.PutMember(ctx, next); err != nil {
		return domain.Member{}, storeError(err, "member")
	}
	s.observeTransition(member, next)
	return next, nil
}

// ExpireDue expires up to batch members whose expiration has passed and
// returns how many were expired. Members changed concurrently are skipped
// and picked up by a later sweep.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, batch int) (_ int, err error) {
	ctx, span := startSpan(ctx, "expire_due")
	defer func() { endSpan(span, err) }()
	if err := s.ready(); err != nil {
		return 0, err
	}
	if batch <= 0 {
		batch = defaultExpireBatch
	}
	now = now.UTC()

	due, err := s.store.ListDueForExpiry(ctx, now, batch)
	if err != nil {
		return 0, storeError(err, "members")
	}
	expired := 0
	for _, member := range due {
		if !member.DueForExpiry(now) {
			continue
		}
		next, err := domain.Expire(member, now)
		if err != nil {
			log.Printf("expire member %s: %v", member.UserID, err)
			continue
		}
		if err := s.store.PutMemberIfUnchanged(ctx, next, member.UpdatedAt); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			return expired, storeError(err, "member")
		}
		s.observeTransition(member, next)
		expired++
	}
	span.SetAttributes(attribute.Int("paywall.expired", expired))
	s.metrics.AddExpired(expired)
	return expired, nil
}

func (s *Service) observeTransition(from, to domain.Member) {
	if from.Status == to.Status && to.Status != domain.StatusActive {
		return
	}
	s.metrics.ObserveTransition(string(from.Status), string(to.Status))
}
