package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/rewindfm/rewind/internal/core/domain"
)

// ErrNoConfidentMatch indicates a text search produced no result meeting
// the match confidence threshold.
var ErrNoConfidentMatch = errors.New("no confident match")

// NoConfidentMatchError provides context for a failed track resolution.
type NoConfidentMatchError struct {
	Title  string
	Artist string
}

func (e NoConfidentMatchError) Error() string {
	if e.Title == "" && e.Artist == "" {
		return ErrNoConfidentMatch.Error()
	}
	return fmt.Sprintf("no confident match found for title %q artist %q", e.Title, e.Artist)
}

func (e NoConfidentMatchError) Is(target error) bool {
	return target == ErrNoConfidentMatch
}

// SeedQuery targets the catalog's seeded recommendation endpoint. Target
// maps feature names to desired values; seed lists are capped at five by
// the remote service.
type SeedQuery struct {
	SeedTrackIDs []string
	SeedArtists  []string
	Target       map[string]float64
	Limit        int
}

// CatalogProvider is the external music catalog: saved-library reads,
// audio feature lookup, seeded similarity search and free-text search.
type CatalogProvider interface {
	// FetchSavedTracks pages through the user's saved library. A limit of
	// zero or less means unlimited.
	FetchSavedTracks(ctx context.Context, accessToken string, limit int) ([]domain.Track, error)

	// SavedTrackCount returns the library's total size.
	SavedTrackCount(ctx context.Context, accessToken string) (int, error)

	// FetchAudioFeatures resolves feature vectors for the given track ids.
	// Tracks the catalog has no features for are absent from the result,
	// not an error.
	FetchAudioFeatures(ctx context.Context, accessToken string, trackIDs []string) (map[string]domain.AudioFeatures, error)

	// SeededRecommendations returns candidate tracks near the target
	// feature point. Fewer candidates than requested is not an error.
	SeededRecommendations(ctx context.Context, accessToken string, q SeedQuery) ([]domain.Track, error)

	// SearchTrack resolves free text to a catalog track, returning a
	// NoConfidentMatchError when nothing scores above the threshold.
	SearchTrack(ctx context.Context, accessToken, title, artist string) (domain.Track, error)

	// AddToLibrary saves tracks into the user's library.
	AddToLibrary(ctx context.Context, accessToken string, trackIDs []string) error
}
