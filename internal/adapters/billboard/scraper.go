package billboard

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/domain"
)

const (
	defaultBaseURL = "https://www.billboard.com/charts/hot-100"
	userAgent      = "rewindfm/1.0"
	maxRankPerDate = 100
)

// sampleDates picks one chart per quarter; a year's taste is captured well
// enough without scraping all 52 weeks.
func sampleDates(year int) []time.Time {
	return []time.Time{
		time.Date(year, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(year, 6, 15, 0, 0, 0, 0, time.UTC),
		time.Date(year, 9, 15, 0, 0, 0, 0, time.UTC),
		time.Date(year, 12, 15, 0, 0, 0, 0, time.UTC),
	}
}

// Scraper fetches and parses historical Hot 100 pages. The chart markup
// has been restructured several times, so extraction tries a list of
// selectors from newest to oldest layout.
type Scraper struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger

	// pause between page fetches, kept configurable for tests
	fetchDelay time.Duration
}

// NewScraper constructs a Scraper. baseURL defaults to the public chart
// site when empty.
func NewScraper(client *http.Client, baseURL string, log zerolog.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Scraper{
		client:     client,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
		fetchDelay: time.Second,
	}
}

// FetchChart scrapes the year's quarterly sample charts and merges them,
// keeping each title+artist pair's best rank. A failed sample date narrows
// the result; all dates failing is an error.
func (s *Scraper) FetchChart(ctx context.Context, year int) ([]domain.ChartEntry, error) {
	var merged []domain.ChartEntry
	best := map[string]int{} // key -> index into merged
	failures := 0

	dates := sampleDates(year)
	for i, date := range dates {
		if i > 0 {
			if err := pause(ctx, s.fetchDelay); err != nil {
				return nil, err
			}
		}

		entries, err := s.scrapeDate(ctx, date)
		if err != nil {
			s.log.Warn().Err(err).Str("date", date.Format("2006-01-02")).Msg("chart sample fetch failed")
			failures++
			continue
		}
		for _, e := range entries {
			e.Year = year
			key := strings.ToLower(e.Title) + "\x00" + strings.ToLower(e.Artist)
			if idx, ok := best[key]; ok {
				if e.Rank < merged[idx].Rank {
					merged[idx] = e
				}
				continue
			}
			best[key] = len(merged)
			merged = append(merged, e)
		}
	}

	if failures == len(dates) {
		return nil, fmt.Errorf("billboard adapter: all chart samples for %d failed", year)
	}
	s.log.Info().Int("year", year).Int("entries", len(merged)).Msg("chart year scraped")
	return merged, nil
}

func (s *Scraper) scrapeDate(ctx context.Context, date time.Time) ([]domain.ChartEntry, error) {
	pageURL := fmt.Sprintf("%s/%s", s.baseURL, date.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request chart page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse chart page: %w", err)
	}

	entries := parseChart(doc, date)
	if len(entries) == 0 {
		return nil, fmt.Errorf("no chart rows recognized at %s", pageURL)
	}
	return entries, nil
}

// itemSelectors cover the chart layouts observed over the years, newest
// first.
var itemSelectors = []string{
	`div[class*="o-chart-results-list-row-container"]`,
	`li[class*="chart-list__element"]`,
	`div[class*="chart-list-item"]`,
}

var titleSelectors = []string{
	`h3[class*="c-title"]`,
	`span[class*="chart-element__information__song"]`,
	`.chart-list-item__title-text`,
	"h3",
}

var artistSelectors = []string{
	`span[class*="c-label"].a-no-trucate`,
	`span[class*="chart-element__information__artist"]`,
	`.chart-list-item__artist`,
	`span[class*="c-label"]`,
}

func parseChart(doc *goquery.Document, date time.Time) []domain.ChartEntry {
	var items *goquery.Selection
	for _, selector := range itemSelectors {
		items = doc.Find(selector)
		if items.Length() > 0 {
			break
		}
	}
	if items == nil || items.Length() == 0 {
		return nil
	}

	var entries []domain.ChartEntry
	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if i >= maxRankPerDate {
			return false
		}
		title := firstText(item, titleSelectors)
		artist := firstText(item, artistSelectors)
		if title == "" || artist == "" {
			return true
		}
		entries = append(entries, domain.ChartEntry{
			ChartDate: date,
			Rank:      i + 1,
			Title:     title,
			Artist:    artist,
		})
		return true
	})
	return entries
}

func firstText(item *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(item.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
