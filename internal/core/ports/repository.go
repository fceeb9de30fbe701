package ports

import (
	"context"
	"time"

	"github.com/rewindfm/rewind/internal/core/domain"
)

// TrackRepository persists a user's library snapshot.
type TrackRepository interface {
	ReplaceLibrary(ctx context.Context, userID int64, tracks []domain.Track) error
	TracksByUser(ctx context.Context, userID int64) ([]domain.Track, error)
	TracksByCluster(ctx context.Context, userID int64, clusterID int) ([]domain.Track, error)
	TrackCount(ctx context.Context, userID int64) (int, error)
	UpdateTrackFeatures(ctx context.Context, userID int64, spotifyID string, features domain.AudioFeatures) error
}

// ClusterRepository persists analysis output. ReplaceAll swaps the user's
// entire cluster set and track assignments in a single transaction so
// readers never observe a partially written run.
type ClusterRepository interface {
	ReplaceAll(ctx context.Context, userID int64, clusters []domain.Cluster, assignment map[string]int) error
	ClustersByUser(ctx context.Context, userID int64) ([]domain.Cluster, error)
}

// RecommendationRepository persists generated recommendations and user
// feedback.
type RecommendationRepository interface {
	SaveAll(ctx context.Context, userID int64, recs []domain.Recommendation) ([]domain.Recommendation, error)
	ByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Recommendation, error)
	BySourceCluster(ctx context.Context, userID int64, clusterID, limit int) ([]domain.Recommendation, error)
	ApplyFeedback(ctx context.Context, userID, recommendationID int64, fb domain.Feedback, at time.Time) (domain.Recommendation, error)
}

// ProgressRepository stores the per-user analysis progress record. Each
// user has at most one row; Upsert replaces it wholesale.
type ProgressRepository interface {
	Upsert(ctx context.Context, p domain.AnalysisProgress) error
	ByUser(ctx context.Context, userID int64) (domain.AnalysisProgress, error)
}

// ChartCacheRepository stores scraped chart entries per year together with
// the fetch time, so the provider can apply a TTL and serve stale data when
// a refresh fails.
type ChartCacheRepository interface {
	Entries(ctx context.Context, year int) ([]domain.ChartEntry, time.Time, error)
	Replace(ctx context.Context, year int, entries []domain.ChartEntry, fetchedAt time.Time) error
}

// UserRepository manages user rows created at login.
type UserRepository interface {
	UpsertBySpotifyID(ctx context.Context, u domain.User) (domain.User, error)
	ByID(ctx context.Context, id int64) (domain.User, error)
	SetDateOfBirth(ctx context.Context, id int64, dob time.Time) error
}

// SessionRepository manages login sessions and the generation log the rate
// limiter reads.
type SessionRepository interface {
	Create(ctx context.Context, s domain.Session) error
	ByID(ctx context.Context, id string) (domain.Session, error)
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error
	Delete(ctx context.Context, id string) error

	RecordGeneration(ctx context.Context, userID int64, at time.Time) error
	GenerationsSince(ctx context.Context, userID int64, since time.Time) ([]time.Time, error)
	LastGeneration(ctx context.Context, userID int64) (time.Time, bool, error)
}
