package domain

import "time"

// RecommendationType distinguishes the two generation pipelines.
type RecommendationType string

const (
	RecommendationCluster   RecommendationType = "cluster"
	RecommendationNostalgia RecommendationType = "nostalgia"
)

// Valid reports whether the type is one the engine can generate.
func (t RecommendationType) Valid() bool {
	return t == RecommendationCluster || t == RecommendationNostalgia
}

// Recommendation is a generated candidate track with its scoring and any
// feedback the user has given.
type Recommendation struct {
	ID             int64
	SpotifyTrackID string
	TrackName      string
	ArtistName     string
	AlbumName      string
	PreviewURL     string
	ExternalURL    string
	ImageURL       string

	Type            RecommendationType
	SourceClusterID *int
	// Confidence is in [0,1]: closeness to the target feature point
	// weighted by popularity.
	Confidence float64

	Liked       *bool
	AlreadyKnew *bool
	FeedbackAt  *time.Time
	CreatedAt   time.Time
}

// Feedback is the user's reaction to a recommendation. Nil fields leave the
// corresponding value untouched.
type Feedback struct {
	Liked       *bool
	AlreadyKnew *bool
}

// ClampConfidence forces a raw score into the [0,1] invariant.
func ClampConfidence(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
