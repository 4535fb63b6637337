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

const levelColumns = `id, name, description, duration_count, duration_unit,
        trial_count, trial_unit, price, fee, access_level, status,
        list_order, created_at, updated_at`

// CreateLevel inserts one level.
func (s *Store) CreateLevel(ctx context.Context, level domain.Level) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(level.ID) == "" {
		return fmt.Errorf("level id is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO levels (`+levelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		level.ID,
		level.Name,
		level.Description,
		level.Duration.Count,
		string(level.Duration.Unit),
		level.TrialDuration.Count,
		string(level.TrialDuration.Unit),
		level.Price.String(),
		level.Fee.String(),
		level.AccessLevel,
		string(level.Status),
		level.ListOrder,
		toMillis(level.CreatedAt),
		toMillis(level.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create level: %w", err)
	}
	return nil
}

// UpdateLevel replaces the mutable fields of an existing level.
func (s *Store) UpdateLevel(ctx context.Context, level domain.Level) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE levels
		    SET name = ?, description = ?, duration_count = ?, duration_unit = ?,
		        trial_count = ?, trial_unit = ?, price = ?, fee = ?,
		        access_level = ?, status = ?, list_order = ?, updated_at = ?
		  WHERE id = ?`,
		level.Name,
		level.Description,
		level.Duration.Count,
		string(level.Duration.Unit),
		level.TrialDuration.Count,
		string(level.TrialDuration.Unit),
		level.Price.String(),
		level.Fee.String(),
		level.AccessLevel,
		string(level.Status),
		level.ListOrder,
		toMillis(level.UpdatedAt),
		level.ID,
	)
	if err != nil {
		return fmt.Errorf("update level: %w", err)
	}
	return requireOneRow(result, "update level")
}

// GetLevel returns one level by ID.
func (s *Store) GetLevel(ctx context.Context, levelID string) (domain.Level, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Level{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+levelColumns+` FROM levels WHERE id = ?`, strings.TrimSpace(levelID))
	level, err := scanLevel(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Level{}, storage.ErrNotFound
		}
		return domain.Level{}, fmt.Errorf("get level: %w", err)
	}
	return level, nil
}

// ListLevels returns every level in display order.
func (s *Store) ListLevels(ctx context.Context) ([]domain.Level, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+levelColumns+` FROM levels ORDER BY list_order ASC, name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	defer rows.Close()

	var levels []domain.Level
	for rows.Next() {
		level, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("list levels: %w", err)
		}
		levels = append(levels, level)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	return levels, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLevel(row rowScanner) (domain.Level, error) {
	var (
		level                domain.Level
		durationUnit         string
		trialUnit            string
		status               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&level.ID,
		&level.Name,
		&level.Description,
		&level.Duration.Count,
		&durationUnit,
		&level.TrialDuration.Count,
		&trialUnit,
		&level.Price,
		&level.Fee,
		&level.AccessLevel,
		&status,
		&level.ListOrder,
		&createdAt,
		&updatedAt,
	); err != nil {
		return domain.Level{}, err
	}
	level.Duration.Unit = domain.DurationUnit(durationUnit)
	level.TrialDuration.Unit = domain.DurationUnit(trialUnit)
	level.Status = domain.LevelStatus(status)
	level.CreatedAt = fromMillis(createdAt)
	level.UpdatedAt = fromMillis(updatedAt)
	return level, nil
}

func requireOneRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
