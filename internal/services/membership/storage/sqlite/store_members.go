package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/paywall/internal/platform/pagination"
	"github.com/louisbranch/paywall/internal/services/membership/domain"
	"github.com/louisbranch/paywall/internal/services/membership/storage"
	"github.com/louisbranch/paywall/internal/services/membership/storage/filter"
)

const (
	defaultMemberPageSize = 50
	maxMemberPageSize     = 200
)

const memberColumns = `user_id, level_id, status, expires_at, recurring, trialing,
        has_trialed, last_paid_at, joined_at, updated_at`

// GetMember returns one membership by user ID.
func (s *Store) GetMember(ctx context.Context, userID string) (domain.Member, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Member{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE user_id = ?`, strings.TrimSpace(userID))
	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Member{}, storage.ErrNotFound
		}
		return domain.Member{}, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

// PutMember inserts or replaces one membership.
func (s *Store) PutMember(ctx context.Context, member domain.Member) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := putMember(ctx, s.sqlDB, member); err != nil {
		return fmt.Errorf("put member: %w", err)
	}
	return nil
}

// PutMemberIfUnchanged writes member only when the stored updated_at still
// equals previousUpdatedAt.
func (s *Store) PutMemberIfUnchanged(ctx context.Context, member domain.Member, previousUpdatedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE members
		    SET level_id = ?, status = ?, expires_at = ?, recurring = ?, trialing = ?,
		        has_trialed = ?, last_paid_at = ?, joined_at = ?, updated_at = ?
		  WHERE user_id = ? AND updated_at = ?`,
		member.LevelID,
		string(member.Status),
		toNullMillis(member.ExpiresAt),
		boolToInt(member.Recurring),
		boolToInt(member.Trialing),
		boolToInt(member.HasTrialed),
		toNullMillis(member.LastPaidAt),
		toMillis(member.JoinedAt),
		toMillis(member.UpdatedAt),
		member.UserID,
		toMillis(previousUpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put member if unchanged: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("put member if unchanged: %w", err)
	}
	if affected == 0 {
		return storage.ErrConflict
	}
	return nil
}

// ListMembers returns a page of members ordered by user ID.
func (s *Store) ListMembers(ctx context.Context, req storage.ListMembersRequest) (storage.MemberPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MemberPage{}, err
	}
	pageSize := pagination.ClampPageSize(req.PageSize, pagination.PageSizeConfig{
		Default: defaultMemberPageSize,
		Max:     maxMemberPageSize,
	})

	cond, err := filter.ParseMemberFilter(req.Filter)
	if err != nil {
		return storage.MemberPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidQuery, err)
	}
	cursor, err := pagination.DecodeCursor(req.PageToken, req.Filter)
	if err != nil {
		return storage.MemberPage{}, fmt.Errorf("%w: %v", storage.ErrInvalidQuery, err)
	}

	var (
		clauses []string
		params  []any
	)
	if cursor.After != "" {
		clauses = append(clauses, "user_id > ?")
		params = append(params, cursor.After)
	}
	if !cond.IsEmpty() {
		clauses = append(clauses, cond.Clause)
		params = append(params, cond.Params...)
	}
	query := `SELECT ` + memberColumns + ` FROM members`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY user_id ASC LIMIT ?`
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.MemberPage{}, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	page := storage.MemberPage{Members: make([]domain.Member, 0, pageSize)}
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return storage.MemberPage{}, fmt.Errorf("list members: %w", err)
		}
		page.Members = append(page.Members, member)
	}
	if err := rows.Err(); err != nil {
		return storage.MemberPage{}, fmt.Errorf("list members: %w", err)
	}

	if len(page.Members) > pageSize {
		page.Members = page.Members[:pageSize]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			After:      page.Members[len(page.Members)-1].UserID,
			FilterHash: pagination.HashFilter(req.Filter),
		})
		if err != nil {
			return storage.MemberPage{}, fmt.Errorf("list members: %w", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}

// ListDueForExpiry returns members whose expiration has passed, oldest
// first. Pending, expired and unlimited members are never due.
func (s *Store) ListDueForExpiry(ctx context.Context, now time.Time, limit int) ([]domain.Member, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMemberPageSize
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+memberColumns+` FROM members
		  WHERE status IN (?, ?, ?) AND expires_at IS NOT NULL AND expires_at < ?
		  ORDER BY expires_at ASC, user_id ASC
		  LIMIT ?`,
		string(domain.StatusActive),
		string(domain.StatusCancelled),
		string(domain.StatusFree),
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due members: %w", err)
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("list due members: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list due members: %w", err)
	}
	return members, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putMember(ctx context.Context, db execer, member domain.Member) error {
	if strings.TrimSpace(member.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := db.ExecContext(
		ctx,
		`INSERT INTO members (`+memberColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		    level_id = excluded.level_id,
		    status = excluded.status,
		    expires_at = excluded.expires_at,
		    recurring = excluded.recurring,
		    trialing = excluded.trialing,
		    has_trialed = excluded.has_trialed,
		    last_paid_at = excluded.last_paid_at,
		    joined_at = excluded.joined_at,
		    updated_at = excluded.updated_at`,
		member.UserID,
		member.LevelID,
		string(member.Status),
		toNullMillis(member.ExpiresAt),
		boolToInt(member.Recurring),
		boolToInt(member.Trialing),
		boolToInt(member.HasTrialed),
		toNullMillis(member.LastPaidAt),
		toMillis(member.JoinedAt),
		toMillis(member.UpdatedAt),
	)
	return err
}

func scanMember(row rowScanner) (domain.Member, error) {
	var (
		member              domain.Member
		status              string
		expiresAt           sql.NullInt64
		lastPaidAt          sql.NullInt64
		recurring, trialing int
		hasTrialed          int
		joinedAt, updatedAt int64
	)
	if err := row.Scan(
		&member.UserID,
		&member.LevelID,
		&status,
		&expiresAt,
		&recurring,
		&trialing,
		&hasTrialed,
		&lastPaidAt,
		&joinedAt,
		&updatedAt,
	); err != nil {
		return domain.Member{}, err
	}
	member.Status = domain.Status(status)
	member.ExpiresAt = fromNullMillis(expiresAt)
	member.Recurring = recurring != 0
	member.Trialing = trialing != 0
	member.HasTrialed = hasTrialed != 0
	member.LastPaidAt = fromNullMillis(lastPaidAt)
	member.JoinedAt = fromMillis(joinedAt)
	member.UpdatedAt = fromMillis(updatedAt)
	return member, nil
}
