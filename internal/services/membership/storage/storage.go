// Package storage defines persistence contracts for membership state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/paywall/internal/services/membership/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrConflict indicates a record changed since it was read.
	ErrConflict = errors.New("record changed concurrently")
	// ErrInvalidQuery indicates a malformed list filter or page token.
	ErrInvalidQuery = errors.New("invalid query")
)

// ListMembersRequest selects one page of members.
type ListMembersRequest struct {
	PageSize  int
	PageToken string
	// Filter is an AIP-160 expression over status, level_id, recurring,
	// expires_at, joined_at and updated_at.
	Filter string
}

// MemberPage stores one page of members ordered by user ID.
type MemberPage struct {
	Members       []domain.Member
	NextPageToken string
}

// PaymentOutcome is the atomic result of settling a payment: the payment
// row, the member it changed, and an optional discount redemption.
type PaymentOutcome struct {
	Payment domain.Payment
	// Member is written when set.
	Member *domain.Member
	// DiscountCode is redeemed for Payment.UserID when non-empty.
	DiscountCode string
}

// LevelStore persists the level catalog.
type LevelStore interface {
	CreateLevel(ctx context.Context, level domain.Level) error
	UpdateLevel(ctx context.Context, level domain.Level) error
	GetLevel(ctx context.Context, levelID string) (domain.Level, error)
	ListLevels(ctx context.Context) ([]domain.Level, error)
}

// MemberStore persists memberships keyed by user ID.
type MemberStore interface {
	GetMember(ctx context.Context, userID string) (domain.Member, error)
	PutMember(ctx context.Context, member domain.Member) error
	// PutMemberIfUnchanged writes member only when the stored row still has
	// previousUpdatedAt, and returns ErrConflict otherwise.
	PutMemberIfUnchanged(ctx context.Context, member domain.Member, previousUpdatedAt time.Time) error
	ListMembers(ctx context.Context, req ListMembersRequest) (MemberPage, error)
	ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]domain.Member, error)
}

// RestrictionStore persists content and term restrictions.
type RestrictionStore interface {
	PutContentRestriction(ctx context.Context, restriction domain.ContentRestriction) error
	GetContentRestriction(ctx context.Context, contentID string) (domain.ContentRestriction, error)
	DeleteContentRestriction(ctx context.Context, contentID string) error
	PutTermRestriction(ctx context.Context, restriction domain.TermRestriction) error
	// ListTermRestrictions returns the stored restrictions among termIDs;
	// unknown terms are skipped.
	ListTermRestrictions(ctx context.Context, termIDs []string) ([]domain.TermRestriction, error)
}

// DiscountStore persists discount codes and their redemptions.
type DiscountStore interface {
	CreateDiscount(ctx context.Context, discount domain.Discount) error
	GetDiscount(ctx context.Context, code string) (domain.Discount, error)
	ListDiscounts(ctx context.Context) ([]domain.Discount, error)
	UpdateDiscountStatus(ctx context.Context, code string, status domain.DiscountStatus, updatedAt time.Time) error
	HasDiscountUse(ctx context.Context, code string, userID string) (bool, error)
	// RecordDiscountUse increments the use count and records the redemption
	// in one transaction. A second use by the same user returns
	// ErrAlreadyExists and a code at its use limit returns ErrConflict.
	RecordDiscountUse(ctx context.Context, code string, userID string, paymentID string, usedAt time.Time) error
}

// PaymentStore persists payments.
type PaymentStore interface {
	CreatePayment(ctx context.Context, payment domain.Payment) error
	GetPayment(ctx context.Context, paymentID string) (domain.Payment, error)
	ListMemberPayments(ctx context.Context, userID string, limit int) ([]domain.Payment, error)
	// ApplyPaymentOutcome writes the outcome atomically.
	ApplyPaymentOutcome(ctx context.Context, outcome PaymentOutcome) error
}

// Store is the full membership persistence surface.
type Store interface {
	LevelStore
	MemberStore
	RestrictionStore
	DiscountStore
	PaymentStore
	Close() error
}
