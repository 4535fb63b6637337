package service

import (
	"context"
	"errors"
	"strings"

	"github.com/louisbranch/paywall/internal/platform/id"
	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// Checkout outcomes reported to metrics.
const (
	checkoutFree      = "free"
	checkoutPending   = "pending"
	checkoutActivated = "activated"
)

// CheckoutRequest starts a signup or upgrade to a level.
type CheckoutRequest struct {
	UserID       string
	LevelID      string
	DiscountCode string
	Recurring    bool
}

// CheckoutResult is the member after checkout and the payment owed, if any.
type CheckoutResult struct {
	Member  domain.Member
	Quote   domain.Quote
	Payment *domain.Payment
}

// PaymentResult is a settled payment and the member it changed.
type PaymentResult struct {
	Payment domain.Payment
	Member  domain.Member
}

// RenewRequest reports a recurring charge collected by the gateway.
type RenewRequest struct {
	UserID        string
	TransactionID string
	Amount        decimal.Decimal
}

// PreviewQuote prices a checkout without changing any state.
func (s *Service) PreviewQuote(ctx context.Context, userID, levelID, code string) (domain.Quote, error) {
	if err := s.ready(); err != nil {
		return domain.Quote{}, err
	}
	level, member, err := s.checkoutSubjects(ctx, userID, levelID)
	if err != nil {
		return domain.Quote{}, err
	}
	discount, err := s.redeemableDiscount(ctx, code, level.ID, member.UserID)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.NewQuote(level, member, discount), nil
}

// StartCheckout signs a user up for a level. Free levels take effect at
// once. Paid levels create a pending payment, unless nothing is owed up
// front, in which case the member is activated immediately.
func (s *Service) StartCheckout(ctx context.Context, req CheckoutRequest) (_ CheckoutResult, err error) {
	ctx, span := startSpan(ctx, "start_checkout",
		attribute.String(traceAttrUserID, req.UserID),
		attribute.String(traceAttrLevelID, req.LevelID),
		attribute.String(traceAttrCode, req.DiscountCode),
	)
	defer func() { endSpan(span, err) }()
	if err := s.ready(); err != nil {
		return CheckoutResult{}, err
	}

	level, member, err := s.checkoutSubjects(ctx, req.UserID, req.LevelID)
	if err != nil {
		return CheckoutResult{}, err
	}
	now := s.now()

	if level.IsFree() {
		next, err := domain.Signup(member, level, now)
		if err != nil {
			return CheckoutResult{}, err
		}
		if err := s.store.PutMember(ctx, next); err != nil {
			return CheckoutResult{}, storeError(err, "member")
		}
		s.observeTransition(member, next)
		s.metrics.ObserveCheckout(checkoutFree)
		return CheckoutResult{Member: next, Quote: domain.NewQuote(level, next, nil)}, nil
	}

	discount, err := s.redeemableDiscount(ctx, req.DiscountCode, level.ID, member.UserID)
	if err != nil {
		return CheckoutResult{}, err
	}
	quote := domain.NewQuote(level, member, discount)

	next, err := domain.Signup(member, level, now)
	if err != nil {
		return CheckoutResult{}, err
	}
	if next.Status != member.Status {
		if err := s.store.PutMember(ctx, next); err != nil {
			return CheckoutResult{}, storeError(err, "member")
		}
		s.observeTransition(member, next)
	}

	paymentID, err := id.NewPrefixed("pay")
	if err != nil {
		return CheckoutResult{}, err
	}
	kind := domain.PaymentKindCheckout
	if next.LevelID == level.ID && (next.Status == domain.StatusActive || next.Status == domain.StatusCancelled) {
		kind = domain.PaymentKindRenewal
	}
	payment := domain.Payment{
		ID:           paymentID,
		UserID:       next.UserID,
		LevelID:      level.ID,
		Kind:         kind,
		Status:       domain.PaymentStatusPending,
		Amount:       quote.InitialTotal,
		DiscountCode: quote.DiscountCode,
		Recurring:    req.Recurring,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return CheckoutResult{}, storeError(err, "payment")
	}

	if quote.IsZero() {
		settled, err := s.settleComplete(ctx, payment, "")
		if err != nil {
			return CheckoutResult{}, err
		}
		s.metrics.ObserveCheckout(checkoutActivated)
		return CheckoutResult{Member: settled.Member, Quote: quote, Payment: &settled.Payment}, nil
	}
	s.metrics.ObserveCheckout(checkoutPending)
	return CheckoutResult{Member: next, Quote: quote, Payment: &payment}, nil
}

// GetPayment returns one payment.
func (s *Service) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	if err := s.ready(); err != nil {
		return domain.Payment{}, err
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.Payment{}, invalidArgument("payment id is required")
	}
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, storeError(err, "payment")
	}
	return payment, nil
}

// CompletePayment records a successful charge and activates or renews the
// member. Completing an already complete payment returns the current state.
func (s *Service) CompletePayment(ctx context.Context, paymentID, transactionID string) (_ PaymentResult, err error) {
	ctx, span := startSpan(ctx, "complete_payment", attribute.String(traceAttrPaymentID, paymentID))
	defer func() { endSpan(span, err) }()

	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return PaymentResult{}, err
	}
	return s.settleComplete(ctx, payment, strings.TrimSpace(transactionID))
}

func (s *Service) settleComplete(ctx context.Context, payment domain.Payment, transactionID string) (PaymentResult, error) {
	now := s.now()
	settled, changed, err := domain.SettlePayment(payment, domain.PaymentStatusComplete, transactionID, now)
	if err != nil {
		return PaymentResult{}, err
	}
	member, err := s.memberOrNew(ctx, payment.UserID)
	if err != nil {
		return PaymentResult{}, err
	}
	if !changed {
		return PaymentResult{Payment: settled, Member: member}, nil
	}

	level, err := s.levels.get(ctx, payment.LevelID)
	if err != nil {
		return PaymentResult{}, storeError(err, "level")
	}
	base := member
	if base.Status == domain.StatusNone {
		// The member row is gone; start it over as a pending signup.
		if base, err = domain.Signup(base, level, now); err != nil {
			return PaymentResult{}, err
		}
	}
	var next domain.Member
	if payment.Kind == domain.PaymentKindRenewal && base.HasLevel() {
		next, err = domain.Renew(base, level, now, payment.Recurring)
	} else {
		next, err = domain.Activate(base, level, now, payment.Recurring)
	}
	if err != nil {
		return PaymentResult{}, err
	}

	if err := s.store.ApplyPaymentOutcome(ctx, storage.PaymentOutcome{
		Payment:      settled,
		Member:       &next,
		DiscountCode: settled.DiscountCode,
	}); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			// Settled by another call; report against the stored state.
			current, err := s.GetPayment(ctx, payment.ID)
			if err != nil {
				return PaymentResult{}, err
			}
			return s.settleComplete(ctx, current, transactionID)
		}
		return PaymentResult{}, storeError(err, "payment")
	}
	s.observeTransition(member, next)
	s.observeRedemption(ctx, settled.DiscountCode)
	return PaymentResult{Payment: settled, Member: next}, nil
}

// FailPayment records a declined charge. A member still pending on the
// checkout falls back to free or expired.
func (s *Service) FailPayment(ctx context.Context, paymentID string) (_ PaymentResult, err error) {
	ctx, span := startSpan(ctx, "fail_payment", attribute.String(traceAttrPaymentID, paymentID))
	defer func() { endSpan(span, err) }()

	payment, err := s.GetPayment(ctx, paymentID)
	if err != nil {
		return PaymentResult{}, err
	}
	return s.settleFailed(ctx, payment)
}

func (s *Service) settleFailed(ctx context.Context, payment domain.Payment) (PaymentResult, error) {
	now := s.now()
	settled, changed, err := domain.SettlePayment(payment, domain.PaymentStatusFailed, "", now)
	if err != nil {
		return PaymentResult{}, err
	}
	member, err := s.memberOrNew(ctx, payment.UserID)
	if err != nil {
		return PaymentResult{}, err
	}
	if !changed {
		return PaymentResult{Payment: settled, Member: member}, nil
	}

	outcome := storage.PaymentOutcome{Payment: settled}
	next := member
	if member.Status == domain.StatusPending {
		if next, err = domain.RevertPending(member, now); err != nil {
			return PaymentResult{}, err
		}
		outcome.Member = &next
	}
	if err := s.store.ApplyPaymentOutcome(ctx, outcome); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			current, err := s.GetPayment(ctx, payment.ID)
			if err != nil {
				return PaymentResult{}, err
			}
			return s.settleFailed(ctx, current)
		}
		return PaymentResult{}, storeError(err, "payment")
	}
	s.observeTransition(member, next)
	return PaymentResult{Payment: settled, Member: next}, nil
}

// RenewMember applies a recurring charge reported by the gateway. The
// member keeps its level and the payment is recorded as complete.
func (s *Service) RenewMember(ctx context.Context, req RenewRequest) (_ PaymentResult, err error) {
	ctx, span := startSpan(ctx, "renew_member", attribute.String(traceAttrUserID, req.UserID))
	defer func() { endSpan(span, err) }()

	member, err := s.GetMember(ctx, req.UserID)
	if err != nil {
		return PaymentResult{}, err
	}
	if !member.HasLevel() {
		return PaymentResult{}, domain.ErrMemberNoLevel
	}
	if req.Amount.IsNegative() {
		return PaymentResult{}, invalidArgument("amount must not be negative")
	}
	level, err := s.levels.get(ctx, member.LevelID)
	if err != nil {
		return PaymentResult{}, storeError(err, "level")
	}
	now := s.now()
	next, err := domain.Renew(member, level, now, true)
	if err != nil {
		return PaymentResult{}, err
	}

	paymentID, err := id.NewPrefixed("pay")
	if err != nil {
		return PaymentResult{}, err
	}
	payment := domain.Payment{
		ID:        paymentID,
		UserID:    member.UserID,
		LevelID:   level.ID,
		Kind:      domain.PaymentKindRenewal,
		Status:    domain.PaymentStatusPending,
		Amount:    req.Amount.Round(2),
		Recurring: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return PaymentResult{}, storeError(err, "payment")
	}
	settled, _, err := domain.SettlePayment(payment, domain.PaymentStatusComplete, strings.TrimSpace(req.TransactionID), now)
	if err != nil {
		return PaymentResult{}, err
	}
	if err := s.store.ApplyPaymentOutcome(ctx, storage.PaymentOutcome{Payment: settled, Member: &next}); err != nil {
		return PaymentResult{}, storeError(err, "payment")
	}
	s.observeTransition(member, next)
	return PaymentResult{Payment: settled, Member: next}, nil
}

// checkoutSubjects loads the level and the member for a checkout. Unknown
// users start from an empty membership.
func (s *Service) checkoutSubjects(ctx context.Context, userID, levelID string) (domain.Level, domain.Member, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Level{}, domain.Member{}, domain.ErrMemberUserIDEmpty
	}
	levelID = strings.TrimSpace(levelID)
	if levelID == "" {
		return domain.Level{}, domain.Member{}, invalidArgument("level id is required")
	}
	level, err := s.levels.get(ctx, levelID)
	if err != nil {
		return domain.Level{}, domain.Member{}, storeError(err, "level")
	}
	member, err := s.memberOrNew(ctx, userID)
	if err != nil {
		return domain.Level{}, domain.Member{}, err
	}
	return level, member, nil
}

func (s *Service) memberOrNew(ctx context.Context, userID string) (domain.Member, error) {
	member, err := s.store.GetMember(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Member{UserID: userID}, nil
	}
	if err != nil {
		return domain.Member{}, storeError(err, "member")
	}
	return member, nil
}

// redeemableDiscount loads code and checks it for levelID and userID. An
// empty code yields no discount.
func (s *Service) redeemableDiscount(ctx context.Context, code, levelID, userID string) (*domain.Discount, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	normalized, err := domain.NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	discount, err := s.store.GetDiscount(ctx, normalized)
	if err != nil {
		return nil, storeError(err, "discount")
	}
	used, err := s.store.HasDiscountUse(ctx, normalized, userID)
	if err != nil {
		return nil, storeError(err, "discount")
	}
	if err := domain.CheckDiscount(discount, levelID, s.now(), used); err != nil {
		return nil, err
	}
	return &discount, nil
}

func (s *Service) observeRedemption(ctx context.Context, code string) {
	if code == "" {
		return
	}
	unit := "unknown"
	if discount, err := s.store.GetDiscount(ctx, code); err == nil {
		unit = string(discount.Unit)
	}
	s.metrics.ObserveRedemption(unit)
}
