package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

// SessionRepo persists login sessions and the generation log.
type SessionRepo struct {
	db *sql.DB
}

var _ ports.SessionRepository = (*SessionRepo)(nil)

// Sessions returns the session repository backed by this adapter.
func (a *Adapter) Sessions() *SessionRepo {
	return &SessionRepo{db: a.db}
}

// Create inserts a new session row.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	query, args, err := builder.
		Insert("sessions").
		Columns("id", "user_id", "access_token", "refresh_token", "token_expiry", "created_at").
		Values(s.ID, s.UserID, s.AccessToken, s.RefreshToken, s.TokenExpiry, createdAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("sessions: build insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sessions: create: %w", err)
	}
	return nil
}

// ByID loads a session row.
func (r *SessionRepo) ByID(ctx context.Context, id string) (domain.Session, error) {
	query, args, err := builder.
		Select("id", "user_id", "access_token", "refresh_token", "token_expiry", "created_at").
		From("sessions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.Session{}, fmt.Errorf("sessions: build select: %w", err)
	}

	var (
		s       domain.Session
		refresh sql.NullString
		expiry  sql.NullTime
	)
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&s.ID, &s.UserID, &s.AccessToken, &refresh, &expiry, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("sessions: load: %w", err)
	}
	s.RefreshToken = refresh.String
	if expiry.Valid {
		s.TokenExpiry = expiry.Time
	}
	return s, nil
}

// UpdateTokens stores refreshed credentials.
func (r *SessionRepo) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error {
	query, args, err := builder.
		Update("sessions").
		Set("access_token", accessToken).
		Set("refresh_token", refreshToken).
		Set("token_expiry", expiry).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("sessions: build update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("sessions: update tokens: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a session (logout).
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	query, args, err := builder.Delete("sessions").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("sessions: build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sessions: delete: %w", err)
	}
	return nil
}

// RecordGeneration appends to the generation log.
func (r *SessionRepo) RecordGeneration(ctx context.Context, userID int64, at time.Time) error {
	query, args, err := builder.
		Insert("generation_log").
		Columns("user_id", "generated_at").
		Values(userID, at.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("sessions: build generation insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sessions: record generation: %w", err)
	}
	return nil
}

// GenerationsSince lists generation timestamps at or after since, oldest
// first.
func (r *SessionRepo) GenerationsSince(ctx context.Context, userID int64, since time.Time) ([]time.Time, error) {
	query, args, err := builder.
		Select("generated_at").
		From("generation_log").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.GtOrEq{"generated_at": since.UTC()}).
		OrderBy("generated_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sessions: build generation select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sessions: generations since: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("sessions: scan generation: %w", err)
		}
		out = append(out, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sessions: iterate generations: %w", err)
	}
	return out, nil
}

// LastGeneration returns the newest generation timestamp, if any.
func (r *SessionRepo) LastGeneration(ctx context.Context, userID int64) (time.Time, bool, error) {
	query, args, err := builder.
		Select("generated_at").
		From("generation_log").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("generated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sessions: build last generation select: %w", err)
	}

	var at time.Time
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("sessions: last generation: %w", err)
	}
	return at, true, nil
}
