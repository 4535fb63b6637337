package domain

import "github.com/shopspring/decimal"

// Quote is the price a member pays to check out on a level.
type Quote struct {
	LevelID        string
	DiscountCode   string
	Price          decimal.Decimal
	Fee            decimal.Decimal
	DiscountAmount decimal.Decimal
	RecurringTotal decimal.Decimal
	InitialTotal   decimal.Decimal
	TrialEligible  bool
	TrialDuration  Duration
}

// NewQuote prices a checkout. The discount reduces the recurring price only;
// a trial-eligible member pays just the fee up front.
func NewQuote(level Level, member Member, discount *Discount) Quote {
	price := level.Price.Round(2)
	fee := level.Fee.Round(2)
	q := Quote{
		LevelID:        level.ID,
		Price:          price,
		Fee:            fee,
		DiscountAmount: decimal.Zero,
		RecurringTotal: price,
		TrialEligible:  member.TrialEligible(level),
	}
	if discount != nil {
		q.DiscountCode = discount.Code
		q.RecurringTotal = ApplyDiscount(price, *discount)
		q.DiscountAmount = price.Sub(q.RecurringTotal)
	}
	if q.TrialEligible {
		q.TrialDuration = level.TrialDuration
		q.InitialTotal = fee
		return q
	}
	q.InitialTotal = fee.Add(q.RecurringTotal)
	return q
}

// IsZero reports whether nothing is owed up front.
func (q Quote) IsZero() bool {
	return q.InitialTotal.IsZero()
}
