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

// UserRepo persists user accounts.
type UserRepo struct {
	db *sql.DB
}

var _ ports.UserRepository = (*UserRepo)(nil)

// Users returns the user repository backed by this adapter.
func (a *Adapter) Users() *UserRepo {
	return &UserRepo{db: a.db}
}

// UpsertBySpotifyID creates or refreshes the account row for a Spotify
// profile and returns the stored user. The date of birth is never
// overwritten at login.
func (r *UserRepo) UpsertBySpotifyID(ctx context.Context, u domain.User) (domain.User, error) {
	query, args, err := builder.
		Insert("users").
		Columns("spotify_id", "display_name", "email", "country", "created_at").
		Values(u.SpotifyID, u.DisplayName, u.Email, u.Country, time.Now().UTC()).
		Suffix(`ON CONFLICT(spotify_id) DO UPDATE SET
			display_name=excluded.display_name,
			email=excluded.email,
			country=excluded.country`).
		ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("users: build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.User{}, fmt.Errorf("users: upsert: %w", err)
	}
	return r.bySpotifyID(ctx, u.SpotifyID)
}

// ByID loads a user row.
func (r *UserRepo) ByID(ctx context.Context, id int64) (domain.User, error) {
	return r.one(ctx, "id", id)
}

func (r *UserRepo) bySpotifyID(ctx context.Context, spotifyID string) (domain.User, error) {
	return r.one(ctx, "spotify_id", spotifyID)
}

func (r *UserRepo) one(ctx context.Context, column string, value any) (domain.User, error) {
	query, args, err := builder.
		Select("id", "spotify_id", "display_name", "email", "country", "date_of_birth", "created_at").
		From("users").
		Where(sq.Eq{column: value}).
		ToSql()
	if err != nil {
		return domain.User{}, fmt.Errorf("users: build select: %w", err)
	}

	var (
		u           domain.User
		displayName sql.NullString
		email       sql.NullString
		country     sql.NullString
		dob         sql.NullTime
	)
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&u.ID, &u.SpotifyID, &displayName, &email, &country, &dob, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("users: load: %w", err)
	}
	u.DisplayName = displayName.String
	u.Email = email.String
	u.Country = country.String
	if dob.Valid {
		d := dob.Time
		u.DateOfBirth = &d
	}
	return u, nil
}

// SetDateOfBirth records the onboarding birth date.
func (r *UserRepo) SetDateOfBirth(ctx context.Context, id int64, dob time.Time) error {
	query, args, err := builder.
		Update("users").
		Set("date_of_birth", dob).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("users: build update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("users: set date of birth: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
