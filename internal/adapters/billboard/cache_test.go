package billboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/domain"
)

type stubSource struct {
	entries []domain.ChartEntry
	err     error
	calls   int
}

func (s *stubSource) FetchChart(ctx context.Context, year int) ([]domain.ChartEntry, error) {
	s.calls++
	return s.entries, s.err
}

type memChartCache struct {
	entries   map[int][]domain.ChartEntry
	fetchedAt map[int]time.Time
}

func newMemChartCache() *memChartCache {
	return &memChartCache{entries: map[int][]domain.ChartEntry{}, fetchedAt: map[int]time.Time{}}
}

func (m *memChartCache) Entries(ctx context.Context, year int) ([]domain.ChartEntry, time.Time, error) {
	return m.entries[year], m.fetchedAt[year], nil
}

func (m *memChartCache) Replace(ctx context.Context, year int, entries []domain.ChartEntry, fetchedAt time.Time) error {
	m.entries[year] = entries
	m.fetchedAt[year] = fetchedAt
	return nil
}

func chartFixture(title string) []domain.ChartEntry {
	return []domain.ChartEntry{{Year: 2002, Rank: 1, Title: title, Artist: "Artist"}}
}

func TestCachedProvider_FreshCacheSkipsScrape(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &stubSource{entries: chartFixture("scraped")}
	cache := newMemChartCache()
	_ = cache.Replace(context.Background(), 2002, chartFixture("cached"), now.Add(-time.Hour))

	p := NewCachedProvider(source, cache, DefaultTTL, zerolog.Nop())
	p.now = func() time.Time { return now }

	got, err := p.FetchChart(context.Background(), 2002)
	if err != nil {
		t.Fatalf("FetchChart() error = %v", err)
	}
	if got[0].Title != "cached" {
		t.Errorf("served %q, want the cached entries", got[0].Title)
	}
	if source.calls != 0 {
		t.Errorf("scraper called %d times behind a fresh cache", source.calls)
	}
}

func TestCachedProvider_ExpiredCacheRefreshes(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &stubSource{entries: chartFixture("scraped")}
	cache := newMemChartCache()
	_ = cache.Replace(context.Background(), 2002, chartFixture("cached"), now.Add(-25*time.Hour))

	p := NewCachedProvider(source, cache, DefaultTTL, zerolog.Nop())
	p.now = func() time.Time { return now }

	got, err := p.FetchChart(context.Background(), 2002)
	if err != nil {
		t.Fatalf("FetchChart() error = %v", err)
	}
	if got[0].Title != "scraped" {
		t.Errorf("served %q, want the refreshed entries", got[0].Title)
	}
	if cached, _, _ := cache.Entries(context.Background(), 2002); cached[0].Title != "scraped" {
		t.Error("refreshed entries were not written back to the cache")
	}
}

func TestCachedProvider_StaleServedOnRefreshFailure(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	source := &stubSource{err: errors.New("site down")}
	cache := newMemChartCache()
	_ = cache.Replace(context.Background(), 2002, chartFixture("stale"), now.Add(-48*time.Hour))

	p := NewCachedProvider(source, cache, DefaultTTL, zerolog.Nop())
	p.now = func() time.Time { return now }

	got, err := p.FetchChart(context.Background(), 2002)
	if err != nil {
		t.Fatalf("FetchChart() error = %v, want stale entries", err)
	}
	if got[0].Title != "stale" {
		t.Errorf("served %q, want the stale cache", got[0].Title)
	}
}

func TestCachedProvider_EmptyCacheFailurePropagates(t *testing.T) {
	source := &stubSource{err: errors.New("site down")}
	p := NewCachedProvider(source, newMemChartCache(), DefaultTTL, zerolog.Nop())

	if _, err := p.FetchChart(context.Background(), 2002); err == nil {
		t.Error("FetchChart() succeeded with no cache and a failing scraper")
	}
}
