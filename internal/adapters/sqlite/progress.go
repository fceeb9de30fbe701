package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

// ProgressRepo stores the per-user analysis progress record.
type ProgressRepo struct {
	db *sql.DB
}

var _ ports.ProgressRepository = (*ProgressRepo)(nil)

// Progress returns the progress repository backed by this adapter.
func (a *Adapter) Progress() *ProgressRepo {
	return &ProgressRepo{db: a.db}
}

// Upsert replaces the user's progress row wholesale. StartedAt is kept
// from the existing row when the update does not carry one, so mid-run
// updates don't reset the run's start time.
func (r *ProgressRepo) Upsert(ctx context.Context, p domain.AnalysisProgress) error {
	query, args, err := builder.
		Insert("analysis_progress").
		Columns("user_id", "status", "step", "percent", "tracks_processed",
			"total_tracks", "error_message", "started_at", "updated_at", "completed_at").
		Values(p.UserID, string(p.Status), p.Step, p.Percent, p.TracksProcessed,
			p.TotalTracks, p.ErrorMessage, nullTime(p.StartedAt), nullTime(p.UpdatedAt), nullTimePtr(p.CompletedAt)).
		Suffix(`ON CONFLICT(user_id) DO UPDATE SET
			status=excluded.status,
			step=excluded.step,
			percent=excluded.percent,
			tracks_processed=excluded.tracks_processed,
			total_tracks=excluded.total_tracks,
			error_message=excluded.error_message,
			started_at=COALESCE(excluded.started_at, analysis_progress.started_at),
			updated_at=excluded.updated_at,
			completed_at=excluded.completed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("progress: build upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("progress: upsert: %w", err)
	}
	return nil
}

// ByUser loads the user's progress record.
func (r *ProgressRepo) ByUser(ctx context.Context, userID int64) (domain.AnalysisProgress, error) {
	query, args, err := builder.
		Select("user_id", "status", "step", "percent", "tracks_processed",
			"total_tracks", "error_message", "started_at", "updated_at", "completed_at").
		From("analysis_progress").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return domain.AnalysisProgress{}, fmt.Errorf("progress: build select: %w", err)
	}

	var (
		p           domain.AnalysisProgress
		status      string
		step        sql.NullString
		errMsg      sql.NullString
		startedAt   sql.NullTime
		updatedAt   sql.NullTime
		completedAt sql.NullTime
	)
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&p.UserID, &status, &step, &p.Percent, &p.TracksProcessed,
		&p.TotalTracks, &errMsg, &startedAt, &updatedAt, &completedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AnalysisProgress{}, domain.ErrNotFound
		}
		return domain.AnalysisProgress{}, fmt.Errorf("progress: load: %w", err)
	}
	p.Status = domain.AnalysisStatus(status)
	p.Step = step.String
	p.ErrorMessage = errMsg.String
	if startedAt.Valid {
		p.StartedAt = startedAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	if completedAt.Valid {
		t := completedAt.Time
		p.CompletedAt = &t
	}
	return p, nil
}
