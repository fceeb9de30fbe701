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

// ChartCacheRepo stores scraped chart entries per year.
type ChartCacheRepo struct {
	db *sql.DB
}

var _ ports.ChartCacheRepository = (*ChartCacheRepo)(nil)

// ChartCache returns the chart cache repository backed by this adapter.
func (a *Adapter) ChartCache() *ChartCacheRepo {
	return &ChartCacheRepo{db: a.db}
}

// Entries loads a cached year with its fetch time. An uncached year is
// (nil, zero, nil), not an error.
func (r *ChartCacheRepo) Entries(ctx context.Context, year int) ([]domain.ChartEntry, time.Time, error) {
	query, args, err := builder.
		Select("year", "chart_date", "rank", "title", "artist", "fetched_at").
		From("chart_entries").
		Where(sq.Eq{"year": year}).
		OrderBy("rank ASC").
		ToSql()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("chart cache: build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("chart cache: query: %w", err)
	}
	defer rows.Close()

	var (
		entries   []domain.ChartEntry
		fetchedAt time.Time
	)
	for rows.Next() {
		var e domain.ChartEntry
		if err := rows.Scan(&e.Year, &e.ChartDate, &e.Rank, &e.Title, &e.Artist, &fetchedAt); err != nil {
			return nil, time.Time{}, fmt.Errorf("chart cache: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("chart cache: iterate: %w", err)
	}
	return entries, fetchedAt, nil
}

// Replace swaps the year's cached entries in one transaction.
func (r *ChartCacheRepo) Replace(ctx context.Context, year int, entries []domain.ChartEntry, fetchedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("chart cache: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chart_entries WHERE year = ?", year); err != nil {
		return fmt.Errorf("chart cache: clear year: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chart_entries (year, chart_date, rank, title, artist, fetched_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("chart cache: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, year, e.ChartDate.UTC(), e.Rank, e.Title, e.Artist, fetchedAt.UTC()); err != nil {
			return fmt.Errorf("chart cache: insert %q: %w", e.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chart cache: commit: %w", err)
	}
	return nil
}
