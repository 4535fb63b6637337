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

// PutContentRestriction inserts or replaces the restriction of one content item.
func (s *Store) PutContentRestriction(ctx context.Context, restriction domain.ContentRestriction) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(restriction.ContentID) == "" {
		return fmt.Errorf("content id is required")
	}
	levelIDs, err := encodeIDs(restriction.Levels.LevelIDs)
	if err != nil {
		return err
	}
	roles, err := encodeIDs(restriction.Roles)
	if err != nil {
		return err
	}
	termIDs, err := encodeIDs(restriction.TermIDs)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO content_restrictions (
		    content_id, author_id, level_mode, level_ids, access_level,
		    paid_only, roles, term_ids, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_id) DO UPDATE SET
		    author_id = excluded.author_id,
		    level_mode = excluded.level_mode,
		    level_ids = excluded.level_ids,
		    access_level = excluded.access_level,
		    paid_only = excluded.paid_only,
		    roles = excluded.roles,
		    term_ids = excluded.term_ids,
		    updated_at = excluded.updated_at`,
		restriction.ContentID,
		restriction.AuthorID,
		string(restriction.Levels.Mode),
		levelIDs,
		restriction.AccessLevel,
		boolToInt(restriction.PaidOnly),
		roles,
		termIDs,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put content restriction: %w", err)
	}
	return nil
}

// GetContentRestriction returns the restriction of one content item.
func (s *Store) GetContentRestriction(ctx context.Context, contentID string) (domain.ContentRestriction, error) {
	if err := s.ready(ctx); err != nil {
		return domain.ContentRestriction{}, err
	}
	var (
		restriction              domain.ContentRestriction
		levelMode                string
		levelIDs, roles, termIDs string
		paidOnly                 int
	)
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT content_id, author_id, level_mode, level_ids, access_level, paid_only, roles, term_ids
		   FROM content_restrictions WHERE content_id = ?`,
		strings.TrimSpace(contentID),
	).Scan(
		&restriction.ContentID,
		&restriction.AuthorID,
		&levelMode,
		&levelIDs,
		&restriction.AccessLevel,
		&paidOnly,
		&roles,
		&termIDs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ContentRestriction{}, storage.ErrNotFound
		}
		return domain.ContentRestriction{}, fmt.Errorf("get content restriction: %w", err)
	}
	restriction.Levels.Mode = domain.LevelMode(levelMode)
	restriction.PaidOnly = paidOnly != 0
	if restriction.Levels.LevelIDs, err = decodeIDs(levelIDs); err != nil {
		return domain.ContentRestriction{}, err
	}
	if restriction.Roles, err = decodeIDs(roles); err != nil {
		return domain.ContentRestriction{}, err
	}
	if restriction.TermIDs, err = decodeIDs(termIDs); err != nil {
		return domain.ContentRestriction{}, err
	}
	return restriction, nil
}

// DeleteContentRestriction removes the restriction of one content item.
func (s *Store) DeleteContentRestriction(ctx context.Context, contentID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM content_restrictions WHERE content_id = ?`, strings.TrimSpace(contentID))
	if err != nil {
		return fmt.Errorf("delete content restriction: %w", err)
	}
	return requireOneRow(result, "delete content restriction")
}

// PutTermRestriction inserts or replaces a term restriction. Empty
// restrictions delete the row.
func (s *Store) PutTermRestriction(ctx context.Context, restriction domain.TermRestriction) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(restriction.TermID) == "" {
		return fmt.Errorf("term id is required")
	}
	if restriction.IsEmpty() {
		if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM term_restrictions WHERE term_id = ?`, restriction.TermID); err != nil {
			return fmt.Errorf("clear term restriction: %w", err)
		}
		return nil
	}
	levelIDs, err := encodeIDs(restriction.LevelIDs)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO term_restrictions (term_id, paid_only, level_ids, access_level, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(term_id) DO UPDATE SET
		    paid_only = excluded.paid_only,
		    level_ids = excluded.level_ids,
		    access_level = excluded.access_level,
		    updated_at = excluded.updated_at`,
		restriction.TermID,
		boolToInt(restriction.PaidOnly),
		levelIDs,
		restriction.AccessLevel,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put term restriction: %w", err)
	}
	return nil
}

// ListTermRestrictions returns the stored restrictions for termIDs in term
// ID order.
func (s *Store) ListTermRestrictions(ctx context.Context, termIDs []string) ([]domain.TermRestriction, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if len(termIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(termIDs))
	params := make([]any, len(termIDs))
	for i, termID := range termIDs {
		placeholders[i] = "?"
		params[i] = strings.TrimSpace(termID)
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT term_id, paid_only, level_ids, access_level FROM term_restrictions
		  WHERE term_id IN (`+strings.Join(placeholders, ", ")+`)
		  ORDER BY term_id ASC`,
		params...,
	)
	if err != nil {
		return nil, fmt.Errorf("list term restrictions: %w", err)
	}
	defer rows.Close()

	var restrictions []domain.TermRestriction
	for rows.Next() {
		var (
			restriction domain.TermRestriction
			paidOnly    int
			levelIDs    string
		)
		if err := rows.Scan(&restriction.TermID, &paidOnly, &levelIDs, &restriction.AccessLevel); err != nil {
			return nil, fmt.Errorf("list term restrictions: %w", err)
		}
		restriction.PaidOnly = paidOnly != 0
		if restriction.LevelIDs, err = decodeIDs(levelIDs); err != nil {
			return nil, err
		}
		restrictions = append(restrictions, restriction)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list term restrictions: %w", err)
	}
	return restrictions, nil
}
