package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
)

const discountColumns = `id, code, name, description, amount, unit, status, expires_at,
        max_uses, use_count, level_id, created_at, updated_at`

// CreateDiscount inserts one discount. Codes are unique.
func (s *Store) CreateDiscount(ctx context.Context, discount domain.Discount) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(discount.ID) == "" {
		return fmt.Errorf("discount id is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO discounts (`+discountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		discount.ID,
		discount.Code,
		discount.Name,
		discount.Description,
		discount.Amount.String(),
		string(discount.Unit),
		string(discount.Status),
		toNullMillis(discount.ExpiresAt),
		discount.MaxUses,
		discount.UseCount,
		discount.LevelID,
		toMillis(discount.CreatedAt),
		toMillis(discount.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create discount: %w", err)
	}
	return nil
}

// GetDiscount returns one discount by code.
func (s *Store) GetDiscount(ctx context.Context, code string) (domain.Discount, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Discount{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+discountColumns+` FROM discounts WHERE code = ?`, strings.TrimSpace(code))
	discount, err := scanDiscount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Discount{}, storage.ErrNotFound
		}
		return domain.Discount{}, fmt.Errorf("get discount: %w", err)
	}
	return discount, nil
}

// ListDiscounts returns every discount ordered by code.
func (s *Store) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+discountColumns+` FROM discounts ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	defer rows.Close()

	var discounts []domain.Discount
	for rows.Next() {
		discount, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("list discounts: %w", err)
		}
		discounts = append(discounts, discount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	return discounts, nil
}

// UpdateDiscountStatus enables or disables a discount.
func (s *Store) UpdateDiscountStatus(ctx context.Context, code string, status domain.DiscountStatus, updatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE discounts SET status = ?, updated_at = ? WHERE code = ?`,
		string(status),
		toMillis(updatedAt),
		strings.TrimSpace(code),
	)
	if err != nil {
		return fmt.Errorf("update discount status: %w", err)
	}
	return requireOneRow(result, "update discount status")
}

// HasDiscountUse reports whether userID already redeemed code.
func (s *Store) HasDiscountUse(ctx context.Context, code string, userID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var found int
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT 1 FROM discount_uses u
		   JOIN discounts d ON d.id = u.discount_id
		  WHERE d.code = ? AND u.user_id = ?`,
		strings.TrimSpace(code),
		strings.TrimSpace(userID),
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check discount use: %w", err)
	}
	return true, nil
}

// RecordDiscountUse records one redemption and increments the use count.
func (s *Store) RecordDiscountUse(ctx context.Context, code string, userID string, paymentID string, usedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		inserted, err := recordDiscountUse(ctx, tx, code, userID, paymentID, usedAt, true)
		if err != nil {
			return err
		}
		if !inserted {
			return storage.ErrAlreadyExists
		}
		return nil
	})
}

// recordDiscountUse inserts the redemption row and bumps the use count.
// It reports false when the user had already redeemed the code. With
// enforceMax set, a code at its use limit returns ErrConflict.
func recordDiscountUse(ctx context.Context, tx *sql.Tx, code, userID, paymentID string, usedAt time.Time, enforceMax bool) (bool, error) {
	var discountID string
	err := tx.QueryRowContext(ctx, `SELECT id FROM discounts WHERE code = ?`, strings.TrimSpace(code)).Scan(&discountID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, storage.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("find discount: %w", err)
	}

	result, err := tx.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO discount_uses (discount_id, user_id, payment_id, used_at) VALUES (?, ?, ?, ?)`,
		discountID,
		strings.TrimSpace(userID),
		paymentID,
		toMillis(usedAt),
	)
	if err != nil {
		return false, fmt.Errorf("record discount use: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record discount use: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	update := `UPDATE discounts SET use_count = use_count + 1, updated_at = ? WHERE id = ?`
	if enforceMax {
		update += ` AND (max_uses = 0 OR use_count < max_uses)`
	}
	result, err = tx.ExecContext(ctx, update, toMillis(usedAt), discountID)
	if err != nil {
		return false, fmt.Errorf("increment discount uses: %w", err)
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment discount uses: %w", err)
	}
	if affected == 0 {
		return false, storage.ErrConflict
	}
	return true, nil
}

func scanDiscount(row rowScanner) (domain.Discount, error) {
	var (
		discount             domain.Discount
		unit, status         string
		expiresAt            sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&discount.ID,
		&discount.Code,
		&discount.Name,
		&discount.Description,
		&discount.Amount,
		&unit,
		&status,
		&expiresAt,
		&discount.MaxUses,
		&discount.UseCount,
		&discount.LevelID,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Discount{}, err
	}
	discount.Unit = domain.DiscountUnit(unit)
	discount.Status = domain.DiscountStatus(status)
	discount.ExpiresAt = fromNullMillis(expiresAt)
	discount.CreatedAt = fromMillis(createdAt)
	discount.UpdatedAt = fromMillis(updatedAt)
	return discount, nil
}
