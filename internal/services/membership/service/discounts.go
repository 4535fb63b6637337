package service

import (
	"context"
	"strings"

	"github.com/louisbranch/paywall/internal/platform/id"
	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"go.opentelemetry.io/otel/attribute"
)

// CreateDiscount validates and stores a discount code. A level-scoped code
// must name an existing level.
func (s *Service) CreateDiscount(ctx context.Context, discount domain.Discount) (_ domain.Discount, err error) {
	ctx, span := startSpan(ctx, "create_discount", attribute.String(traceAttrCode, discount.Code))
	defer func() { endSpan(span, err) }()
	if err := s.ready(); err != nil {
		return domain.Discount{}, err
	}

	discount, err = domain.NormalizeDiscount(discount)
	if err != nil {
		return domain.Discount{}, err
	}
	if discount.LevelID != "" {
		if _, err := s.levels.get(ctx, discount.LevelID); err != nil {
			return domain.Discount{}, storeError(err, "level")
		}
	}
	discount.ID, err = id.NewPrefixed("disc")
	if err != nil {
		return domain.Discount{}, err
	}
	now := s.now()
	discount.UseCount = 0
	discount.CreatedAt = now
	discount.UpdatedAt = now
	if err := s.store.CreateDiscount(ctx, discount); err != nil {
		return domain.Discount{}, storeError(err, "discount")
	}
	return discount, nil
}

// GetDiscount returns one discount by code.
func (s *Service) GetDiscount(ctx context.Context, code string) (domain.Discount, error) {
	if err := s.ready(); err != nil {
		return domain.Discount{}, err
	}
	normalized, err := domain.NormalizeCode(code)
	if err != nil {
		return domain.Discount{}, err
	}
	discount, err := s.store.GetDiscount(ctx, normalized)
	if err != nil {
		return domain.Discount{}, storeError(err, "discount")
	}
	return discount, nil
}

// ListDiscounts returns every discount.
func (s *Service) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	discounts, err := s.store.ListDiscounts(ctx)
	if err != nil {
		return nil, storeError(err, "discounts")
	}
	return discounts, nil
}

// DisableDiscount stops a code from being redeemed.
func (s *Service) DisableDiscount(ctx context.Context, code string) (domain.Discount, error) {
	if err := s.ready(); err != nil {
		return domain.Discount{}, err
	}
	normalized, err := domain.NormalizeCode(strings.TrimSpace(code))
	if err != nil {
		return domain.Discount{}, err
	}
	if err := s.store.UpdateDiscountStatus(ctx, normalized, domain.DiscountStatusDisabled, s.now()); err != nil {
		return domain.Discount{}, storeError(err, "discount")
	}
	return s.GetDiscount(ctx, normalized)
}
