package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/domain"
)

func nostalgiaFixture() (*mockCatalog, *mockCharts, *mockTrackRepo, *mockClusterRepo, *mockRecRepo) {
	catalog := &mockCatalog{
		searchResults: map[string]domain.Track{
			"Hit One|Band A":   testTrack("hit-1", 0.9, 0.85, 150),
			"Hit Two|Band B":   testTrack("hit-2", 0.1, 0.2, 70),
			"Hit Three|Band C": testTrack("hit-3", 0.85, 0.8, 145),
		},
	}
	charts := &mockCharts{charts: map[int][]domain.ChartEntry{
		2002: {
			{Year: 2002, Rank: 1, Title: "Hit One", Artist: "Band A"},
			{Year: 2002, Rank: 2, Title: "Hit Two", Artist: "Band B"},
			{Year: 2002, Rank: 3, Title: "Never Released", Artist: "Nobody"},
		},
		2003: {
			{Year: 2003, Rank: 1, Title: "Hit Three", Artist: "Band C"},
			{Year: 2003, Rank: 2, Title: "Hit One", Artist: "Band A"}, // charted twice
		},
	}}
	tracks := newMockTrackRepo()
	clusterRepo := newMockClusterRepo()
	clusterRepo.clusters[1] = []domain.Cluster{
		{ID: 0, Centroid: map[string]float64{"energy": 0.9, "valence": 0.85, "tempo": 150}},
	}
	return catalog, charts, tracks, clusterRepo, &mockRecRepo{}
}

func userBorn(year int) domain.User {
	dob := time.Date(year, 5, 15, 0, 0, 0, 0, time.UTC)
	return domain.User{ID: 1, SpotifyID: "spotify-user", DateOfBirth: &dob}
}

func TestNostalgia_Generate(t *testing.T) {
	catalog, charts, tracks, clusterRepo, recRepo := nostalgiaFixture()
	n := NewNostalgia(catalog, charts, tracks, clusterRepo, recRepo, zerolog.Nop())

	// Born 1990: formative window 2002-2008 covers both chart years.
	got, err := n.Generate(context.Background(), domain.Session{ID: "s1", UserID: 1, AccessToken: "tok"}, userBorn(1990), 10)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// "Never Released" resolves to nothing and is dropped without error;
	// "Hit One" charted in both years but appears once.
	if len(got) != 3 {
		t.Fatalf("Generate() returned %d recommendations, want 3: %+v", len(got), got)
	}

	seen := map[string]bool{}
	for i, rec := range got {
		if seen[rec.SpotifyTrackID] {
			t.Errorf("duplicate recommendation %s", rec.SpotifyTrackID)
		}
		seen[rec.SpotifyTrackID] = true
		if rec.Type != domain.RecommendationNostalgia {
			t.Errorf("recommendation %d type = %q, want %q", i, rec.Type, domain.RecommendationNostalgia)
		}
		if rec.SourceClusterID != nil {
			t.Errorf("nostalgia recommendation %d carries a source cluster", i)
		}
		if rec.Confidence < 0 || rec.Confidence > 1 {
			t.Errorf("recommendation %d confidence %.3f outside [0,1]", i, rec.Confidence)
		}
		if i > 0 && got[i-1].Confidence < rec.Confidence {
			t.Errorf("recommendations not ordered by closeness: %.3f before %.3f", got[i-1].Confidence, rec.Confidence)
		}
	}

	// The centroid sits on the high-energy group, so the closest hits
	// must outrank the low-energy one.
	if got[len(got)-1].SpotifyTrackID != "hit-2" {
		t.Errorf("farthest hit = %s, want hit-2", got[len(got)-1].SpotifyTrackID)
	}
}

func TestNostalgia_GenerateSkipsOwned(t *testing.T) {
	catalog, charts, tracks, clusterRepo, recRepo := nostalgiaFixture()
	tracks.tracks[1] = []domain.Track{testTrack("hit-1", 0.9, 0.85, 150)}

	n := NewNostalgia(catalog, charts, tracks, clusterRepo, recRepo, zerolog.Nop())
	got, err := n.Generate(context.Background(), domain.Session{ID: "s1", UserID: 1, AccessToken: "tok"}, userBorn(1990), 10)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, rec := range got {
		if rec.SpotifyTrackID == "hit-1" {
			t.Error("owned track recommended")
		}
	}
}

func TestNostalgia_GenerateRequiresDateOfBirth(t *testing.T) {
	catalog, charts, tracks, clusterRepo, recRepo := nostalgiaFixture()
	n := NewNostalgia(catalog, charts, tracks, clusterRepo, recRepo, zerolog.Nop())

	_, err := n.Generate(context.Background(), domain.Session{ID: "s1", UserID: 1}, domain.User{ID: 1}, 10)
	if err != ErrDateOfBirthRequired {
		t.Errorf("Generate() error = %v, want ErrDateOfBirthRequired", err)
	}
}

func TestNostalgia_GenerateRequiresAnalysis(t *testing.T) {
	catalog, charts, tracks, _, recRepo := nostalgiaFixture()
	n := NewNostalgia(catalog, charts, tracks, newMockClusterRepo(), recRepo, zerolog.Nop())

	_, err := n.Generate(context.Background(), domain.Session{ID: "s1", UserID: 1}, userBorn(1990), 10)
	if err != ErrNoAnalysis {
		t.Errorf("Generate() error = %v, want ErrNoAnalysis", err)
	}
}

func TestNostalgia_GenerateSkipsFailedYears(t *testing.T) {
	catalog, _, tracks, clusterRepo, recRepo := nostalgiaFixture()

	// Only one formative year has chart data; another fails outright.
	charts := &mockCharts{
		charts: map[int][]domain.ChartEntry{
			2002: {{Year: 2002, Rank: 1, Title: "Hit One", Artist: "Band A"}},
		},
		errs: map[int]error{2003: context.DeadlineExceeded},
	}

	n := NewNostalgia(catalog, charts, tracks, clusterRepo, recRepo, zerolog.Nop())
	got, err := n.Generate(context.Background(), domain.Session{ID: "s1", UserID: 1, AccessToken: "tok"}, userBorn(1990), 10)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(got) != 1 || got[0].SpotifyTrackID != "hit-1" {
		t.Errorf("Generate() = %+v, want the single resolvable hit", got)
	}
}
