package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/domain"
)

func candidateTrack(id string, energy, tempo float64, popularity int) domain.Track {
	t := testTrack(id, energy, 0.5, tempo)
	t.Popularity = popularity
	return t
}

func TestRecommender_Generate(t *testing.T) {
	cluster := domain.Cluster{
		ID:         0,
		Centroid:   map[string]float64{"energy": 0.9, "tempo": 150, "valence": 0.8},
		TrackCount: 2,
	}

	owned := []domain.Track{
		testTrack("owned-1", 0.9, 0.8, 150),
		testTrack("owned-2", 0.85, 0.75, 145),
	}

	candidates := []domain.Track{
		candidateTrack("cand-close", 0.9, 150, 80),
		candidateTrack("cand-far", 0.1, 60, 80),
		candidateTrack("owned-1", 0.9, 150, 90), // already in the library
		{SpotifyID: "cand-nofeat", Name: "Mystery", Artist: "Unknown", Popularity: 50},
	}

	catalog := &mockCatalog{seeded: candidates}
	tracks := newMockTrackRepo()
	tracks.tracks[1] = owned
	tracks.byClust[0] = owned
	clusterRepo := newMockClusterRepo()
	clusterRepo.clusters[1] = []domain.Cluster{cluster}
	recRepo := &mockRecRepo{}

	r := NewRecommender(catalog, tracks, clusterRepo, recRepo, zerolog.Nop())

	got, err := r.Generate(context.Background(), domain.Session{ID: "s1", UserID: 1, AccessToken: "tok"}, 10)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("Generate() returned no recommendations")
	}

	for i, rec := range got {
		if rec.ID == 0 {
			t.Errorf("recommendation %d was not persisted", i)
		}
		if rec.SpotifyTrackID == "owned-1" || rec.SpotifyTrackID == "owned-2" {
			t.Errorf("recommendation %d is an owned track %s", i, rec.SpotifyTrackID)
		}
		if rec.Confidence < 0 || rec.Confidence > 1 {
			t.Errorf("recommendation %d confidence %.3f outside [0,1]", i, rec.Confidence)
		}
		if rec.Type != domain.RecommendationCluster {
			t.Errorf("recommendation %d type = %q, want %q", i, rec.Type, domain.RecommendationCluster)
		}
		if rec.SourceClusterID == nil || *rec.SourceClusterID != 0 {
			t.Errorf("recommendation %d has no source cluster", i)
		}
		if i > 0 && got[i-1].Confidence < rec.Confidence {
			t.Errorf("recommendations not ordered by confidence: %.3f before %.3f", got[i-1].Confidence, rec.Confidence)
		}
	}
}

func TestRecommender_GenerateNoAnalysis(t *testing.T) {
	r := NewRecommender(&mockCatalog{}, newMockTrackRepo(), newMockClusterRepo(), &mockRecRepo{}, zerolog.Nop())

	_, err := r.Generate(context.Background(), domain.Session{ID: "s1", UserID: 1}, 10)
	if err != ErrNoAnalysis {
		t.Errorf("Generate() error = %v, want ErrNoAnalysis", err)
	}
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name       string
		distance   float64
		popularity int
		wantMin    float64
		wantMax    float64
	}{
		{name: "perfect match, max popularity", distance: 0, popularity: 100, wantMin: 1, wantMax: 1},
		{name: "perfect match, zero popularity", distance: 0, popularity: 0, wantMin: 0.6, wantMax: 0.6},
		{name: "far match, zero popularity", distance: 100, popularity: 0, wantMin: 0, wantMax: 0.01},
		{name: "popularity above scale clamps", distance: 0, popularity: 250, wantMin: 1, wantMax: 1},
		{name: "negative distance clamps", distance: -3, popularity: 50, wantMin: 0.8, wantMax: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := confidenceScore(tt.distance, tt.popularity)
			if got < tt.wantMin-1e-9 || got > tt.wantMax+1e-9 {
				t.Errorf("confidenceScore(%.1f, %d) = %.4f, want in [%.2f, %.2f]",
					tt.distance, tt.popularity, got, tt.wantMin, tt.wantMax)
			}
		})
	}

	// Closer always scores at least as high as farther at equal popularity.
	if confidenceScore(0.1, 50) <= confidenceScore(2.0, 50) {
		t.Error("closer candidate did not outrank farther candidate")
	}
}

func TestScoreCandidates_ExcludesOwned(t *testing.T) {
	cluster := domain.Cluster{ID: 2, Centroid: map[string]float64{"energy": 0.5}}
	excluded := map[string]struct{}{"owned": {}}

	got := scoreCandidates([]domain.Track{
		candidateTrack("owned", 0.5, 120, 90),
		candidateTrack("fresh", 0.5, 120, 40),
	}, cluster, excluded, 10)

	if len(got) != 1 || got[0].SpotifyTrackID != "fresh" {
		t.Errorf("scoreCandidates() = %+v, want only the unowned track", got)
	}
}
