package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

// ClusterRepo persists analysis output.
type ClusterRepo struct {
	db *sql.DB
}

var _ ports.ClusterRepository = (*ClusterRepo)(nil)

// Clusters returns the cluster repository backed by this adapter.
func (a *Adapter) Clusters() *ClusterRepo {
	return &ClusterRepo{db: a.db}
}

// ReplaceAll swaps the user's cluster set and track assignments in a
// single transaction, so a reader sees either the old run or the new one.
func (r *ClusterRepo) ReplaceAll(ctx context.Context, userID int64, clusters []domain.Cluster, assignment map[string]int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clusters: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM clusters WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clusters: clear: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE tracks SET cluster_id = NULL WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clusters: clear assignments: %w", err)
	}

	now := time.Now().UTC()
	for _, c := range clusters {
		centroid, err := json.Marshal(c.Centroid)
		if err != nil {
			return fmt.Errorf("clusters: encode centroid: %w", err)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO clusters (user_id, cluster_id, centroid, track_count, created_at) VALUES (?, ?, ?, ?, ?)",
			userID, c.ID, string(centroid), c.TrackCount, createdAt,
		); err != nil {
			return fmt.Errorf("clusters: insert %d: %w", c.ID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, "UPDATE tracks SET cluster_id = ? WHERE user_id = ? AND spotify_id = ?")
	if err != nil {
		return fmt.Errorf("clusters: prepare assignment: %w", err)
	}
	defer stmt.Close()
	for spotifyID, clusterID := range assignment {
		if _, err := stmt.ExecContext(ctx, clusterID, userID, spotifyID); err != nil {
			return fmt.Errorf("clusters: assign %s: %w", spotifyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clusters: commit: %w", err)
	}
	return nil
}

// ClustersByUser loads the current cluster set, ordered by id.
func (r *ClusterRepo) ClustersByUser(ctx context.Context, userID int64) ([]domain.Cluster, error) {
	query, args, err := builder.
		Select("cluster_id", "centroid", "track_count", "created_at").
		From("clusters").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("cluster_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("clusters: build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("clusters: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Cluster
	for rows.Next() {
		var (
			c        domain.Cluster
			centroid string
		)
		if err := rows.Scan(&c.ID, &centroid, &c.TrackCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("clusters: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(centroid), &c.Centroid); err != nil {
			return nil, fmt.Errorf("clusters: decode centroid %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clusters: iterate: %w", err)
	}
	return out, nil
}
