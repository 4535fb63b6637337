package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountUnit selects how a discount amount reduces a price.
type DiscountUnit string

const (
	DiscountUnitPercent DiscountUnit = "percent"
	DiscountUnitFlat    DiscountUnit = "flat"
)

// DiscountStatus controls whether a code can be redeemed.
type DiscountStatus string

const (
	DiscountStatusActive   DiscountStatus = "active"
	DiscountStatusDisabled DiscountStatus = "disabled"
)

var (
	discountCodePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)
	hundred             = decimal.NewFromInt(100)
)

// Discount is a redeemable price reduction.
type Discount struct {
	ID          string
	Code        string
	Name        string
	Description string
	Amount      decimal.Decimal
	Unit        DiscountUnit
	Status      DiscountStatus
	ExpiresAt   time.Time
	MaxUses     int
	UseCount    int
	LevelID     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeCode trims and lower-cases a discount code.
func NormalizeCode(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if !discountCodePattern.MatchString(code) {
		return "", ErrDiscountInvalidCode
	}
	return code, nil
}

// NormalizeDiscount canonicalizes the code, defaults the status to active,
// and validates the result.
func NormalizeDiscount(d Discount) (Discount, error) {
	code, err := NormalizeCode(d.Code)
	if err != nil {
		return Discount{}, err
	}
	d.Code = code
	d.Name = strings.TrimSpace(d.Name)
	d.Description = strings.TrimSpace(d.Description)
	d.LevelID = strings.TrimSpace(d.LevelID)
	if d.Status == "" {
		d.Status = DiscountStatusActive
	}
	if d.MaxUses < 0 {
		d.MaxUses = 0
	}
	if err := d.Validate(); err != nil {
		return Discount{}, err
	}
	return d, nil
}

// Validate checks the discount invariants.
func (d Discount) Validate() error {
	if !discountCodePattern.MatchString(d.Code) {
		return ErrDiscountInvalidCode
	}
	switch d.Unit {
	case DiscountUnitPercent:
		if d.Amount.GreaterThan(hundred) {
			return ErrDiscountInvalidAmount
		}
	case DiscountUnitFlat:
	default:
		return ErrDiscountInvalidUnit
	}
	if !d.Amount.IsPositive() {
		return ErrDiscountInvalidAmount
	}
	return nil
}

// IsExpired reports whether the code is past its expiration at now.
func (d Discount) IsExpired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && now.After(d.ExpiresAt)
}

// IsMaxedOut reports whether the code reached its use cap.
func (d Discount) IsMaxedOut() bool {
	return d.MaxUses > 0 && d.UseCount >= d.MaxUses
}

// CheckDiscount reports why the code cannot be redeemed for levelID, or nil.
func CheckDiscount(d Discount, levelID string, now time.Time, usedByMember bool) error {
	if d.Status != DiscountStatusActive {
		return ErrDiscountInactive
	}
	if d.IsExpired(now) {
		return ErrDiscountExpired
	}
	if d.IsMaxedOut() {
		return ErrDiscountMaxedOut
	}
	if d.LevelID != "" && d.LevelID != levelID {
		return discountLevelMismatchError(d.Code, levelID)
	}
	if usedByMember {
		return ErrDiscountAlreadyUsed
	}
	return nil
}

// ApplyDiscount returns price after the discount, floored at zero and
// rounded to cents.
func ApplyDiscount(price decimal.Decimal, d Discount) decimal.Decimal {
	var discounted decimal.Decimal
	switch d.Unit {
	case DiscountUnitPercent:
		discounted = price.Sub(price.Mul(d.Amount).Div(hundred))
	case DiscountUnitFlat:
		discounted = price.Sub(d.Amount)
	default:
		discounted = price
	}
	if discounted.IsNegative() {
		return decimal.Zero
	}
	return discounted.Round(2)
}
