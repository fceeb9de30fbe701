package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

// TrackRepo persists the per-user library snapshot.
type TrackRepo struct {
	db *sql.DB
}

var _ ports.TrackRepository = (*TrackRepo)(nil)

// Tracks returns the track repository backed by this adapter.
func (a *Adapter) Tracks() *TrackRepo {
	return &TrackRepo{db: a.db}
}

const trackColumns = `spotify_id, name, artist, album, duration_ms, popularity, explicit,
	preview_url, external_url, image_url, added_at, release_date, has_features,
	acousticness, danceability, energy, instrumentalness, liveness, loudness,
	speechiness, tempo, valence, key, mode, time_signature, cluster_id`

// ReplaceLibrary swaps the user's stored library for the fetched snapshot
// in one transaction.
func (r *TrackRepo) ReplaceLibrary(ctx context.Context, userID int64, tracks []domain.Track) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tracks: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tracks WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("tracks: clear library: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (user_id, `+trackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("tracks: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		args := []any{
			userID, t.SpotifyID, t.Name, t.Artist, t.Album, t.DurationMs, t.Popularity,
			boolToInt(t.Explicit), t.PreviewURL, t.ExternalURL, t.ImageURL,
			nullTime(t.AddedAt), t.ReleaseDate,
		}
		if t.Features != nil {
			f := t.Features
			args = append(args, 1,
				f.Acousticness, f.Danceability, f.Energy, f.Instrumentalness,
				f.Liveness, f.Loudness, f.Speechiness, f.Tempo, f.Valence,
				f.Key, f.Mode, f.TimeSignature)
		} else {
			args = append(args, 0,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil)
		}
		args = append(args, nullableInt(t.ClusterID))

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("tracks: insert %s: %w", t.SpotifyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tracks: commit: %w", err)
	}
	return nil
}

// TracksByUser loads the user's whole library.
func (r *TrackRepo) TracksByUser(ctx context.Context, userID int64) ([]domain.Track, error) {
	return r.query(ctx, sq.Eq{"user_id": userID})
}

// TracksByCluster loads the members of one cluster.
func (r *TrackRepo) TracksByCluster(ctx context.Context, userID int64, clusterID int) ([]domain.Track, error) {
	return r.query(ctx, sq.Eq{"user_id": userID, "cluster_id": clusterID})
}

func (r *TrackRepo) query(ctx context.Context, pred sq.Eq) ([]domain.Track, error) {
	query, args, err := builder.
		Select(trackColumns).
		From("tracks").
		Where(pred).
		OrderBy("spotify_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("tracks: build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tracks: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracks: iterate: %w", err)
	}
	return out, nil
}

func scanTrack(rows *sql.Rows) (domain.Track, error) {
	var (
		t           domain.Track
		album       sql.NullString
		duration    sql.NullInt64
		popularity  sql.NullInt64
		explicit    sql.NullInt64
		previewURL  sql.NullString
		externalURL sql.NullString
		imageURL    sql.NullString
		addedAt     sql.NullTime
		releaseDate sql.NullString
		hasFeatures int

		acousticness, danceability, energy, instrumentalness sql.NullFloat64
		liveness, loudness, speechiness, tempo, valence      sql.NullFloat64
		key, mode, timeSignature                             sql.NullInt64
		clusterID                                            sql.NullInt64
	)

	if err := rows.Scan(
		&t.SpotifyID, &t.Name, &t.Artist, &album, &duration, &popularity, &explicit,
		&previewURL, &externalURL, &imageURL, &addedAt, &releaseDate, &hasFeatures,
		&acousticness, &danceability, &energy, &instrumentalness,
		&liveness, &loudness, &speechiness, &tempo, &valence,
		&key, &mode, &timeSignature, &clusterID,
	); err != nil {
		return domain.Track{}, fmt.Errorf("tracks: scan: %w", err)
	}

	t.Album = album.String
	t.DurationMs = int(duration.Int64)
	t.Popularity = int(popularity.Int64)
	t.Explicit = explicit.Int64 != 0
	t.PreviewURL = previewURL.String
	t.ExternalURL = externalURL.String
	t.ImageURL = imageURL.String
	if addedAt.Valid {
		t.AddedAt = addedAt.Time
	}
	t.ReleaseDate = releaseDate.String

	if hasFeatures != 0 {
		t.Features = &domain.AudioFeatures{
			Acousticness:     acousticness.Float64,
			Danceability:     danceability.Float64,
			Energy:           energy.Float64,
			Instrumentalness: instrumentalness.Float64,
			Liveness:         liveness.Float64,
			Loudness:         loudness.Float64,
			Speechiness:      speechiness.Float64,
			Tempo:            tempo.Float64,
			Valence:          valence.Float64,
			Key:              int(key.Int64),
			Mode:             int(mode.Int64),
			TimeSignature:    int(timeSignature.Int64),
		}
	}
	if clusterID.Valid {
		cid := int(clusterID.Int64)
		t.ClusterID = &cid
	}
	return t, nil
}

// TrackCount returns the stored library size.
func (r *TrackRepo) TrackCount(ctx context.Context, userID int64) (int, error) {
	query, args, err := builder.
		Select("COUNT(*)").
		From("tracks").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("tracks: build count: %w", err)
	}
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("tracks: count: %w", err)
	}
	return count, nil
}

// UpdateTrackFeatures backfills a feature vector for one track.
func (r *TrackRepo) UpdateTrackFeatures(ctx context.Context, userID int64, spotifyID string, features domain.AudioFeatures) error {
	query, args, err := builder.
		Update("tracks").
		Set("has_features", 1).
		Set("acousticness", features.Acousticness).
		Set("danceability", features.Danceability).
		Set("energy", features.Energy).
		Set("instrumentalness", features.Instrumentalness).
		Set("liveness", features.Liveness).
		Set("loudness", features.Loudness).
		Set("speechiness", features.Speechiness).
		Set("tempo", features.Tempo).
		Set("valence", features.Valence).
		Set("key", features.Key).
		Set("mode", features.Mode).
		Set("time_signature", features.TimeSignature).
		Where(sq.Eq{"user_id": userID, "spotify_id": spotifyID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("tracks: build features update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("tracks: update features: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func nullTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
