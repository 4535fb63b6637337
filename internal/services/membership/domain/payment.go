package domain

import (
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/louisbranch/paywall/internal/platform/errors"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusComplete PaymentStatus = "complete"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// PaymentKind records why a payment was taken.
type PaymentKind string

const (
	PaymentKindCheckout PaymentKind = "checkout"
	PaymentKindRenewal  PaymentKind = "renewal"
)

// Payment is an amount owed for a level. Gateways settle it outside the
// service and report the outcome.
type Payment struct {
	ID            string
	UserID        string
	LevelID       string
	Kind          PaymentKind
	Status        PaymentStatus
	Amount        decimal.Decimal
	DiscountCode  string
	Recurring     bool
	TransactionID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SettlePayment moves a pending payment to complete or failed. Settling a
// payment again with the same outcome reports unchanged.
func SettlePayment(p Payment, to PaymentStatus, transactionID string, now time.Time) (Payment, bool, error) {
	if to != PaymentStatusComplete && to != PaymentStatusFailed {
		return p, false, paymentStatusError(p.Status, to)
	}
	if p.Status == to {
		return p, false, nil
	}
	if p.Status != PaymentStatusPending {
		return p, false, paymentStatusError(p.Status, to)
	}
	p.Status = to
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	p.UpdatedAt = now
	return p, true, nil
}

func paymentStatusError(from, to PaymentStatus) error {
	return apperrors.WithMetadata(apperrors.CodePaymentStatusInvalid, "payment status transition is not allowed", map[string]string{
		"Status":   string(from),
		"ToStatus": string(to),
	})
}
