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

// RecommendationRepo persists generated recommendations and feedback.
type RecommendationRepo struct {
	db *sql.DB
}

var _ ports.RecommendationRepository = (*RecommendationRepo)(nil)

// Recommendations returns the recommendation repository backed by this
// adapter.
func (a *Adapter) Recommendations() *RecommendationRepo {
	return &RecommendationRepo{db: a.db}
}

const recommendationColumns = `id, spotify_track_id, track_name, artist_name, album_name,
	preview_url, external_url, image_url, type, source_cluster_id, confidence,
	liked, already_knew, feedback_at, created_at`

// SaveAll inserts a batch and returns the rows with their assigned ids.
func (r *RecommendationRepo) SaveAll(ctx context.Context, userID int64, recs []domain.Recommendation) ([]domain.Recommendation, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("recommendations: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendations (user_id, spotify_track_id, track_name, artist_name,
			album_name, preview_url, external_url, image_url, type, source_cluster_id,
			confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("recommendations: prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	out := make([]domain.Recommendation, len(recs))
	copy(out, recs)
	for i := range out {
		createdAt := out[i].CreatedAt
		if createdAt.IsZero() {
			createdAt = now
			out[i].CreatedAt = now
		}
		res, err := stmt.ExecContext(ctx,
			userID, out[i].SpotifyTrackID, out[i].TrackName, out[i].ArtistName,
			out[i].AlbumName, out[i].PreviewURL, out[i].ExternalURL, out[i].ImageURL,
			string(out[i].Type), nullableInt(out[i].SourceClusterID),
			out[i].Confidence, createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("recommendations: insert %s: %w", out[i].SpotifyTrackID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("recommendations: last insert id: %w", err)
		}
		out[i].ID = id
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("recommendations: commit: %w", err)
	}
	return out, nil
}

// ByUser lists the user's recommendation history, newest first. A limit of
// zero or less returns everything.
func (r *RecommendationRepo) ByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Recommendation, error) {
	q := builder.
		Select(recommendationColumns).
		From("recommendations").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return r.query(ctx, q)
}

// BySourceCluster lists recommendations generated from one cluster.
func (r *RecommendationRepo) BySourceCluster(ctx context.Context, userID int64, clusterID, limit int) ([]domain.Recommendation, error) {
	q := builder.
		Select(recommendationColumns).
		From("recommendations").
		Where(sq.Eq{"user_id": userID, "source_cluster_id": clusterID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.query(ctx, q)
}

func (r *RecommendationRepo) query(ctx context.Context, q sq.SelectBuilder) ([]domain.Recommendation, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("recommendations: build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recommendations: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Recommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recommendations: iterate: %w", err)
	}
	return out, nil
}

func scanRecommendation(rows *sql.Rows) (domain.Recommendation, error) {
	var (
		rec         domain.Recommendation
		albumName   sql.NullString
		previewURL  sql.NullString
		externalURL sql.NullString
		imageURL    sql.NullString
		recType     string
		srcCluster  sql.NullInt64
		liked       sql.NullInt64
		alreadyKnew sql.NullInt64
		feedbackAt  sql.NullTime
	)
	if err := rows.Scan(&rec.ID, &rec.SpotifyTrackID, &rec.TrackName, &rec.ArtistName,
		&albumName, &previewURL, &externalURL, &imageURL, &recType, &srcCluster,
		&rec.Confidence, &liked, &alreadyKnew, &feedbackAt, &rec.CreatedAt); err != nil {
		return domain.Recommendation{}, fmt.Errorf("recommendations: scan: %w", err)
	}
	rec.AlbumName = albumName.String
	rec.PreviewURL = previewURL.String
	rec.ExternalURL = externalURL.String
	rec.ImageURL = imageURL.String
	rec.Type = domain.RecommendationType(recType)
	if srcCluster.Valid {
		cid := int(srcCluster.Int64)
		rec.SourceClusterID = &cid
	}
	if liked.Valid {
		v := liked.Int64 != 0
		rec.Liked = &v
	}
	if alreadyKnew.Valid {
		v := alreadyKnew.Int64 != 0
		rec.AlreadyKnew = &v
	}
	if feedbackAt.Valid {
		t := feedbackAt.Time
		rec.FeedbackAt = &t
	}
	return rec, nil
}

// ApplyFeedback updates feedback fields on one recommendation and returns
// the updated row. Nil feedback fields leave stored values untouched.
func (r *RecommendationRepo) ApplyFeedback(ctx context.Context, userID, recommendationID int64, fb domain.Feedback, at time.Time) (domain.Recommendation, error) {
	q := builder.
		Update("recommendations").
		Set("feedback_at", at.UTC()).
		Where(sq.Eq{"id": recommendationID, "user_id": userID})
	if fb.Liked != nil {
		q = q.Set("liked", boolToInt(*fb.Liked))
	}
	if fb.AlreadyKnew != nil {
		q = q.Set("already_knew", boolToInt(*fb.AlreadyKnew))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("recommendations: build feedback update: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Recommendation{}, fmt.Errorf("recommendations: apply feedback: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Recommendation{}, domain.ErrNotFound
	}

	return r.byID(ctx, userID, recommendationID)
}

func (r *RecommendationRepo) byID(ctx context.Context, userID, id int64) (domain.Recommendation, error) {
	recs, err := r.query(ctx, builder.
		Select(recommendationColumns).
		From("recommendations").
		Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return domain.Recommendation{}, err
	}
	if len(recs) == 0 {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	return recs[0], nil
}
