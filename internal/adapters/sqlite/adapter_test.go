package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rewindfm/rewind/internal/core/domain"
)

func testAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(":memory:")
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func seedUser(t *testing.T, a *Adapter, spotifyID string) domain.User {
	t.Helper()
	u, err := a.Users().UpsertBySpotifyID(context.Background(), domain.User{
		SpotifyID:   spotifyID,
		DisplayName: "Listener",
		Email:       spotifyID + "@example.com",
		Country:     "DE",
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func sampleFeatures(energy float64) *domain.AudioFeatures {
	return &domain.AudioFeatures{
		Acousticness: 0.2, Danceability: 0.6, Energy: energy,
		Instrumentalness: 0.05, Liveness: 0.1, Loudness: -7,
		Speechiness: 0.04, Tempo: 124, Valence: 0.7,
		Key: 5, Mode: 1, TimeSignature: 4,
	}
}

func TestUserRepo(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()

	u := seedUser(t, a, "listener-1")
	if u.ID == 0 {
		t.Fatal("upserted user has no id")
	}

	// Upserting again keeps the id and refreshes the profile.
	again, err := a.Users().UpsertBySpotifyID(ctx, domain.User{SpotifyID: "listener-1", DisplayName: "Renamed"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.ID != u.ID || again.DisplayName != "Renamed" {
		t.Errorf("second upsert = %+v, want same id with renamed profile", again)
	}

	dob := time.Date(1990, 5, 15, 0, 0, 0, 0, time.UTC)
	if err := a.Users().SetDateOfBirth(ctx, u.ID, dob); err != nil {
		t.Fatalf("SetDateOfBirth() error = %v", err)
	}
	loaded, err := a.Users().ByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if loaded.DateOfBirth == nil || !loaded.DateOfBirth.Equal(dob) {
		t.Errorf("date of birth = %v, want %v", loaded.DateOfBirth, dob)
	}

	if _, err := a.Users().ByID(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing user error = %v, want ErrNotFound", err)
	}
	if err := a.Users().SetDateOfBirth(ctx, 9999, dob); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetDateOfBirth on missing user = %v, want ErrNotFound", err)
	}
}

func TestSessionRepo(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	u := seedUser(t, a, "listener-1")

	expiry := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := domain.Session{ID: "sess-1", UserID: u.ID, AccessToken: "at", RefreshToken: "rt", TokenExpiry: expiry}
	if err := a.Sessions().Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	loaded, err := a.Sessions().ByID(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if loaded.UserID != u.ID || loaded.AccessToken != "at" || !loaded.TokenExpiry.Equal(expiry) {
		t.Errorf("loaded session = %+v", loaded)
	}

	newExpiry := expiry.Add(time.Hour)
	if err := a.Sessions().UpdateTokens(ctx, "sess-1", "at2", "rt2", newExpiry); err != nil {
		t.Fatalf("UpdateTokens() error = %v", err)
	}
	loaded, _ = a.Sessions().ByID(ctx, "sess-1")
	if loaded.AccessToken != "at2" || loaded.RefreshToken != "rt2" {
		t.Errorf("tokens not updated: %+v", loaded)
	}

	if err := a.Sessions().Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := a.Sessions().ByID(ctx, "sess-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted session error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepo_GenerationLog(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	u := seedUser(t, a, "listener-1")

	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, at := range []time.Time{base, base.Add(4 * time.Hour), base.Add(30 * time.Hour)} {
		if err := a.Sessions().RecordGeneration(ctx, u.ID, at); err != nil {
			t.Fatalf("RecordGeneration() error = %v", err)
		}
	}

	recent, err := a.Sessions().GenerationsSince(ctx, u.ID, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GenerationsSince() error = %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("generations since cutoff = %d, want 2", len(recent))
	}

	last, ok, err := a.Sessions().LastGeneration(ctx, u.ID)
	if err != nil || !ok {
		t.Fatalf("LastGeneration() = %v, %v, %v", last, ok, err)
	}
	if !last.Equal(base.Add(30 * time.Hour)) {
		t.Errorf("last generation = %v, want %v", last, base.Add(30*time.Hour))
	}

	if _, ok, err := a.Sessions().LastGeneration(ctx, 9999); err != nil || ok {
		t.Errorf("LastGeneration for unknown user = ok=%v err=%v, want no record", ok, err)
	}
}

func TestTrackRepo_ReplaceLibraryRoundTrip(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	u := seedUser(t, a, "listener-1")

	added := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)
	library := []domain.Track{
		{
			SpotifyID: "t1", Name: "First", Artist: "Band A", Album: "LP",
			DurationMs: 201000, Popularity: 64, Explicit: true,
			PreviewURL: "https://p/1", ExternalURL: "https://o/1", ImageURL: "https://i/1",
			AddedAt: added, ReleaseDate: "2001-06-01", Features: sampleFeatures(0.8),
		},
		{SpotifyID: "t2", Name: "Second", Artist: "Band B"},
	}
	if err := a.Tracks().ReplaceLibrary(ctx, u.ID, library); err != nil {
		t.Fatalf("ReplaceLibrary() error = %v", err)
	}

	got, err := a.Tracks().TracksByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("TracksByUser() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d tracks, want 2", len(got))
	}

	first := got[0]
	if first.SpotifyID != "t1" || first.Artist != "Band A" || !first.Explicit || !first.AddedAt.Equal(added) {
		t.Errorf("first track = %+v", first)
	}
	if first.Features == nil || first.Features.Energy != 0.8 || first.Features.Key != 5 {
		t.Errorf("first track features = %+v", first.Features)
	}
	if got[1].Features != nil {
		t.Error("featureless track came back with a feature vector")
	}

	// A second replace swaps the snapshot entirely.
	if err := a.Tracks().ReplaceLibrary(ctx, u.ID, library[:1]); err != nil {
		t.Fatalf("second ReplaceLibrary() error = %v", err)
	}
	count, err := a.Tracks().TrackCount(ctx, u.ID)
	if err != nil {
		t.Fatalf("TrackCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("track count after replace = %d, want 1", count)
	}
}

func TestTrackRepo_UpdateTrackFeatures(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	u := seedUser(t, a, "listener-1")

	if err := a.Tracks().ReplaceLibrary(ctx, u.ID, []domain.Track{{SpotifyID: "t1", Name: "Bare", Artist: "Band"}}); err != nil {
		t.Fatalf("ReplaceLibrary() error = %v", err)
	}

	if err := a.Tracks().UpdateTrackFeatures(ctx, u.ID, "t1", *sampleFeatures(0.4)); err != nil {
		t.Fatalf("UpdateTrackFeatures() error = %v", err)
	}
	got, _ := a.Tracks().TracksByUser(ctx, u.ID)
	if got[0].Features == nil || got[0].Features.Energy != 0.4 {
		t.Errorf("backfilled features = %+v", got[0].Features)
	}

	err := a.Tracks().UpdateTrackFeatures(ctx, u.ID, "missing", *sampleFeatures(0.4))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("backfill on missing track = %v, want ErrNotFound", err)
	}
}

func TestClusterRepo_ReplaceAll(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	u := seedUser(t, a, "listener-1")

	library := []domain.Track{
		{SpotifyID: "t1", Name: "One", Artist: "A", Features: sampleFeatures(0.9)},
		{SpotifyID: "t2", Name: "Two", Artist: "B", Features: sampleFeatures(0.1)},
		{SpotifyID: "t3", Name: "Three", Artist: "C", Features: sampleFeatures(0.85)},
	}
	if err := a.Tracks().ReplaceLibrary(ctx, u.ID, library); err != nil {
		t.Fatalf("ReplaceLibrary() error = %v", err)
	}

	clusters := []domain.Cluster{
		{ID: 0, Centroid: map[string]float64{"energy": 0.87, "tempo": 130}, TrackCount: 2},
		{ID: 1, Centroid: map[string]float64{"energy": 0.1, "tempo": 80}, TrackCount: 1},
	}
	assignment := map[string]int{"t1": 0, "t3": 0, "t2": 1}
	if err := a.Clusters().ReplaceAll(ctx, u.ID, clusters, assignment); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	loaded, err := a.Clusters().ClustersByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ClustersByUser() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("clusters = %d, want 2", len(loaded))
	}
	if loaded[0].Centroid["energy"] != 0.87 || loaded[0].TrackCount != 2 {
		t.Errorf("first cluster = %+v", loaded[0])
	}

	members, err := a.Tracks().TracksByCluster(ctx, u.ID, 0)
	if err != nil {
		t.Fatalf("TracksByCluster() error = %v", err)
	}
	if len(members) != 2 {
		t.Errorf("cluster 0 members = %d, want 2", len(members))
	}

	// A fresh run with one cluster replaces the set and reassigns.
	if err := a.Clusters().ReplaceAll(ctx, u.ID, clusters[:1], map[string]int{"t1": 0}); err != nil {
		t.Fatalf("second ReplaceAll() error = %v", err)
	}
	loaded, _ = a.Clusters().ClustersByUser(ctx, u.ID)
	if len(loaded) != 1 {
		t.Errorf("clusters after second run = %d, want 1", len(loaded))
	}
	orphans, _ := a.Tracks().TracksByCluster(ctx, u.ID, 1)
	if len(orphans) != 0 {
		t.Errorf("stale cluster 1 still has %d members", len(orphans))
	}
}

func TestProgressRepo_UpsertKeepsStartedAt(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	u := seedUser(t, a, "listener-1")

	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := a.Progress().Upsert(ctx, domain.AnalysisProgress{
		UserID: u.ID, Status: domain.StatusStarting, Step: "Initializing analysis",
		StartedAt: started, UpdatedAt: started,
	}); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	// Mid-run updates carry no StartedAt.
	if err := a.Progress().Upsert(ctx, domain.AnalysisProgress{
		UserID: u.ID, Status: domain.StatusClustering, Step: "Clustering taste profile",
		Percent: 70, TracksProcessed: 40, TotalTracks: 40, UpdatedAt: started.Add(time.Minute),
	}); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	got, err := a.Progress().ByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ByUser() error = %v", err)
	}
	if got.Status != domain.StatusClustering || got.Percent != 70 {
		t.Errorf("progress = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started at = %v, want preserved %v", got.StartedAt, started)
	}

	if _, err := a.Progress().ByUser(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing progress error = %v, want ErrNotFound", err)
	}
}

func TestRecommendationRepo(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()
	u := seedUser(t, a, "listener-1")

	cid := 2
	saved, err := a.Recommendations().SaveAll(ctx, u.ID, []domain.Recommendation{
		{SpotifyTrackID: "r1", TrackName: "One", ArtistName: "A", Type: domain.RecommendationCluster, SourceClusterID: &cid, Confidence: 0.9},
		{SpotifyTrackID: "r2", TrackName: "Two", ArtistName: "B", Type: domain.RecommendationNostalgia, Confidence: 0.4},
	})
	if err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if len(saved) != 2 || saved[0].ID == 0 || saved[1].ID == 0 {
		t.Fatalf("saved = %+v, want assigned ids", saved)
	}

	history, err := a.Recommendations().ByUser(ctx, u.ID, 0, 0)
	if err != nil {
		t.Fatalf("ByUser() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d rows, want 2", len(history))
	}

	byCluster, err := a.Recommendations().BySourceCluster(ctx, u.ID, cid, 10)
	if err != nil {
		t.Fatalf("BySourceCluster() error = %v", err)
	}
	if len(byCluster) != 1 || byCluster[0].SpotifyTrackID != "r1" {
		t.Errorf("by cluster = %+v", byCluster)
	}

	liked := true
	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	updated, err := a.Recommendations().ApplyFeedback(ctx, u.ID, saved[0].ID, domain.Feedback{Liked: &liked}, at)
	if err != nil {
		t.Fatalf("ApplyFeedback() error = %v", err)
	}
	if updated.Liked == nil || !*updated.Liked || updated.FeedbackAt == nil {
		t.Errorf("updated = %+v", updated)
	}
	if updated.AlreadyKnew != nil {
		t.Error("nil feedback field overwrote stored value")
	}

	if _, err := a.Recommendations().ApplyFeedback(ctx, u.ID, 9999, domain.Feedback{Liked: &liked}, at); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("feedback on missing row = %v, want ErrNotFound", err)
	}
}

func TestChartCacheRepo(t *testing.T) {
	a := testAdapter(t)
	ctx := context.Background()

	fetchedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []domain.ChartEntry{
		{Year: 2002, ChartDate: time.Date(2002, 6, 15, 0, 0, 0, 0, time.UTC), Rank: 1, Title: "Hit One", Artist: "Band A"},
		{Year: 2002, ChartDate: time.Date(2002, 6, 15, 0, 0, 0, 0, time.UTC), Rank: 2, Title: "Hit Two", Artist: "Band B"},
	}
	if err := a.ChartCache().Replace(ctx, 2002, entries, fetchedAt); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, at, err := a.ChartCache().Entries(ctx, 2002)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(got) != 2 || got[0].Title != "Hit One" || got[0].Rank != 1 {
		t.Errorf("entries = %+v", got)
	}
	if !at.Equal(fetchedAt) {
		t.Errorf("fetched at = %v, want %v", at, fetchedAt)
	}

	// An uncached year is empty, not an error.
	missing, _, err := a.ChartCache().Entries(ctx, 1999)
	if err != nil || len(missing) != 0 {
		t.Errorf("uncached year = %+v, %v", missing, err)
	}

	// Replacing swaps the year's rows.
	if err := a.ChartCache().Replace(ctx, 2002, entries[:1], fetchedAt.Add(time.Hour)); err != nil {
		t.Fatalf("second Replace() error = %v", err)
	}
	got, _, _ = a.ChartCache().Entries(ctx, 2002)
	if len(got) != 1 {
		t.Errorf("entries after replace = %d, want 1", len(got))
	}
}
