package billboard

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

// DefaultTTL is how long a scraped chart year stays fresh. Historical
// charts never change, but a failed scrape may have left a partial year.
const DefaultTTL = 24 * time.Hour

// CachedProvider wraps the scraper with a persistent per-year cache. A
// fresh cache row short-circuits the scrape; when a refresh fails, stale
// entries are served rather than none.
type CachedProvider struct {
	source ports.ChartProvider
	cache  ports.ChartCacheRepository
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

var _ ports.ChartProvider = (*CachedProvider)(nil)

// NewCachedProvider constructs a CachedProvider. ttl of zero or less uses
// DefaultTTL.
func NewCachedProvider(source ports.ChartProvider, cache ports.ChartCacheRepository, ttl time.Duration, log zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedProvider{source: source, cache: cache, ttl: ttl, now: time.Now, log: log}
}

// FetchChart serves the year from cache while fresh, refreshing through
// the scraper otherwise.
func (p *CachedProvider) FetchChart(ctx context.Context, year int) ([]domain.ChartEntry, error) {
	cached, fetchedAt, err := p.cache.Entries(ctx, year)
	if err != nil {
		p.log.Warn().Err(err).Int("year", year).Msg("chart cache read failed")
	}
	if err == nil && len(cached) > 0 && p.now().Sub(fetchedAt) < p.ttl {
		return cached, nil
	}

	entries, scrapeErr := p.source.FetchChart(ctx, year)
	if scrapeErr != nil {
		if len(cached) > 0 {
			p.log.Warn().Err(scrapeErr).Int("year", year).Msg("chart refresh failed, serving stale cache")
			return cached, nil
		}
		return nil, scrapeErr
	}

	if err := p.cache.Replace(ctx, year, entries, p.now()); err != nil {
		p.log.Warn().Err(err).Int("year", year).Msg("chart cache write failed")
	}
	return entries, nil
}
