package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
)

const paymentColumns = `id, user_id, level_id, kind, status, amount, discount_code,
        recurring, transaction_id, created_at, updated_at`

// CreatePayment inserts one payment.
func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(payment.ID) == "" {
		return fmt.Errorf("payment id is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.UserID,
		payment.LevelID,
		string(payment.Kind),
		string(payment.Status),
		payment.Amount.String(),
		payment.DiscountCode,
		boolToInt(payment.Recurring),
		payment.TransactionID,
		toMillis(payment.CreatedAt),
		toMillis(payment.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// GetPayment returns one payment by ID.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (domain.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Payment{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, strings.TrimSpace(paymentID))
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, storage.ErrNotFound
		}
		return domain.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

// ListMemberPayments returns the newest payments of one user.
func (s *Store) ListMemberPayments(ctx context.Context, userID string, limit int) ([]domain.Payment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMemberPageSize
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		strings.TrimSpace(userID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list member payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("list member payments: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list member payments: %w", err)
	}
	return payments, nil
}

// ApplyPaymentOutcome settles a pending payment, writes the member and
// redeems the discount in one transaction. A payment that is no longer
// pending returns ErrConflict and nothing is written. A repeated redemption
// by the same user is ignored; the limit was checked at checkout.
func (s *Store) ApplyPaymentOutcome(ctx context.Context, outcome storage.PaymentOutcome) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	payment := outcome.Payment
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			`UPDATE payments SET status = ?, transaction_id = ?, updated_at = ? WHERE id = ? AND status = ?`,
			string(payment.Status),
			payment.TransactionID,
			toMillis(payment.UpdatedAt),
			payment.ID,
			string(domain.PaymentStatusPending),
		)
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if affected == 0 {
			return paymentMissingOrSettled(ctx, tx, payment.ID)
		}
		if outcome.Member != nil {
			if err := putMember(ctx, tx, *outcome.Member); err != nil {
				return fmt.Errorf("put member: %w", err)
			}
		}
		if strings.TrimSpace(outcome.DiscountCode) != "" {
			if _, err := recordDiscountUse(ctx, tx, outcome.DiscountCode, payment.UserID, payment.ID, payment.UpdatedAt, false); err != nil {
				return err
			}
		}
		return nil
	})
}

func paymentMissingOrSettled(ctx context.Context, tx *sql.Tx, paymentID string) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = ?`, paymentID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return storage.ErrNotFound
	case err != nil:
		return fmt.Errorf("update payment: %w", err)
	default:
		return storage.ErrConflict
	}
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		payment              domain.Payment
		kind, status         string
		recurring            int
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.LevelID,
		&kind,
		&status,
		&payment.Amount,
		&payment.DiscountCode,
		&recurring,
		&payment.TransactionID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Payment{}, err
	}
	payment.Kind = domain.PaymentKind(kind)
	payment.Status = domain.PaymentStatus(status)
	payment.Recurring = recurring != 0
	payment.CreatedAt = fromMillis(createdAt)
	payment.UpdatedAt = fromMillis(updatedAt)
	return payment, nil
}
