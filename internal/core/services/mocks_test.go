package services

import (
	"context"
	"sync"
	"time"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

type mockCatalog struct {
	savedTracks []domain.Track
	savedErr    error

	features    map[string]domain.AudioFeatures
	featuresErr error

	seeded    []domain.Track
	seededErr error

	searchResults map[string]domain.Track // keyed by "title|artist"
	searchErr     error
}

func (m *mockCatalog) FetchSavedTracks(ctx context.Context, token string, limit int) ([]domain.Track, error) {
	return m.savedTracks, m.savedErr
}

func (m *mockCatalog) SavedTrackCount(ctx context.Context, token string) (int, error) {
	return len(m.savedTracks), nil
}

func (m *mockCatalog) FetchAudioFeatures(ctx context.Context, token string, ids []string) (map[string]domain.AudioFeatures, error) {
	return m.features, m.featuresErr
}

func (m *mockCatalog) SeededRecommendations(ctx context.Context, token string, q ports.SeedQuery) ([]domain.Track, error) {
	return m.seeded, m.seededErr
}

func (m *mockCatalog) SearchTrack(ctx context.Context, token, title, artist string) (domain.Track, error) {
	if m.searchErr != nil {
		return domain.Track{}, m.searchErr
	}
	if t, ok := m.searchResults[title+"|"+artist]; ok {
		return t, nil
	}
	return domain.Track{}, ports.NoConfidentMatchError{Title: title, Artist: artist}
}

func (m *mockCatalog) AddToLibrary(ctx context.Context, token string, ids []string) error {
	return nil
}

type mockCharts struct {
	charts map[int][]domain.ChartEntry
	errs   map[int]error
	err    error
}

func (m *mockCharts) FetchChart(ctx context.Context, year int) ([]domain.ChartEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	if err, ok := m.errs[year]; ok {
		return nil, err
	}
	return m.charts[year], nil
}

type mockTrackRepo struct {
	mu      sync.Mutex
	tracks  map[int64][]domain.Track
	byClust map[int][]domain.Track
}

func newMockTrackRepo() *mockTrackRepo {
	return &mockTrackRepo{tracks: map[int64][]domain.Track{}, byClust: map[int][]domain.Track{}}
}

func (m *mockTrackRepo) ReplaceLibrary(ctx context.Context, userID int64, tracks []domain.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks[userID] = tracks
	return nil
}

func (m *mockTrackRepo) TracksByUser(ctx context.Context, userID int64) ([]domain.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracks[userID], nil
}

func (m *mockTrackRepo) TracksByCluster(ctx context.Context, userID int64, clusterID int) ([]domain.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byClust[clusterID], nil
}

func (m *mockTrackRepo) TrackCount(ctx context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracks[userID]), nil
}

func (m *mockTrackRepo) UpdateTrackFeatures(ctx context.Context, userID int64, spotifyID string, features domain.AudioFeatures) error {
	return nil
}

type mockClusterRepo struct {
	mu         sync.Mutex
	clusters   map[int64][]domain.Cluster
	replaceErr error
	replaced   int
}

func newMockClusterRepo() *mockClusterRepo {
	return &mockClusterRepo{clusters: map[int64][]domain.Cluster{}}
}

func (m *mockClusterRepo) ReplaceAll(ctx context.Context, userID int64, clusters []domain.Cluster, assignment map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.clusters[userID] = clusters
	m.replaced++
	return nil
}

func (m *mockClusterRepo) ClustersByUser(ctx context.Context, userID int64) ([]domain.Cluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clusters[userID], nil
}

type mockRecRepo struct {
	mu     sync.Mutex
	saved  []domain.Recommendation
	nextID int64
}

func (m *mockRecRepo) SaveAll(ctx context.Context, userID int64, recs []domain.Recommendation) ([]domain.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Recommendation, len(recs))
	copy(out, recs)
	for i := range out {
		m.nextID++
		out[i].ID = m.nextID
	}
	m.saved = append(m.saved, out...)
	return out, nil
}

func (m *mockRecRepo) ByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Recommendation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, nil
}

func (m *mockRecRepo) BySourceCluster(ctx context.Context, userID int64, clusterID, limit int) ([]domain.Recommendation, error) {
	return nil, nil
}

func (m *mockRecRepo) ApplyFeedback(ctx context.Context, userID, recID int64, fb domain.Feedback, at time.Time) (domain.Recommendation, error) {
	return domain.Recommendation{}, nil
}

type mockProgressRepo struct {
	mu      sync.Mutex
	records map[int64]domain.AnalysisProgress
	history []domain.AnalysisProgress
}

func newMockProgressRepo() *mockProgressRepo {
	return &mockProgressRepo{records: map[int64]domain.AnalysisProgress{}}
}

func (m *mockProgressRepo) Upsert(ctx context.Context, p domain.AnalysisProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[p.UserID] = p
	m.history = append(m.history, p)
	return nil
}

func (m *mockProgressRepo) ByUser(ctx context.Context, userID int64) (domain.AnalysisProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.records[userID]
	if !ok {
		return domain.AnalysisProgress{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *mockProgressRepo) current(userID int64) domain.AnalysisProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[userID]
}

type mockSessionRepo struct {
	mu          sync.Mutex
	generations map[int64][]time.Time
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{generations: map[int64][]time.Time{}}
}

func (m *mockSessionRepo) Create(ctx context.Context, s domain.Session) error { return nil }

func (m *mockSessionRepo) ByID(ctx context.Context, id string) (domain.Session, error) {
	return domain.Session{}, domain.ErrNotFound
}

func (m *mockSessionRepo) UpdateTokens(ctx context.Context, id, access, refresh string, expiry time.Time) error {
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id string) error { return nil }

func (m *mockSessionRepo) RecordGeneration(ctx context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[userID] = append(m.generations[userID], at)
	return nil
}

func (m *mockSessionRepo) GenerationsSince(ctx context.Context, userID int64, since time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []time.Time
	for _, at := range m.generations[userID] {
		if !at.Before(since) {
			out = append(out, at)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) LastGeneration(ctx context.Context, userID int64) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gens := m.generations[userID]
	if len(gens) == 0 {
		return time.Time{}, false, nil
	}
	return gens[len(gens)-1], true, nil
}
