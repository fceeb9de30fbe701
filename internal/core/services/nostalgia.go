package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

// Nostalgia generates recommendations from the chart hits of a user's
// formative years (ages 12-18), ranked by closeness to the user's taste
// clusters.
type Nostalgia struct {
	catalog  ports.CatalogProvider
	charts   ports.ChartProvider
	tracks   ports.TrackRepository
	clusters ports.ClusterRepository
	recs     ports.RecommendationRepository
	log      zerolog.Logger
}

// NewNostalgia constructs a Nostalgia matcher.
func NewNostalgia(
	catalog ports.CatalogProvider,
	charts ports.ChartProvider,
	tracks ports.TrackRepository,
	clusters ports.ClusterRepository,
	recs ports.RecommendationRepository,
	log zerolog.Logger,
) *Nostalgia {
	return &Nostalgia{catalog: catalog, charts: charts, tracks: tracks, clusters: clusters, recs: recs, log: log}
}

type scoredMatch struct {
	track    domain.Track
	distance float64
}

// Generate produces up to limit nostalgia recommendations for the
// session's user and persists them. Chart entries that cannot be resolved
// against the catalog are dropped silently.
func (n *Nostalgia) Generate(ctx context.Context, session domain.Session, user domain.User, limit int) ([]domain.Recommendation, error) {
	if user.DateOfBirth == nil {
		return nil, ErrDateOfBirthRequired
	}

	clusterSet, err := n.clusters.ClustersByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("nostalgia: load clusters: %w", err)
	}
	if len(clusterSet) == 0 {
		return nil, ErrNoAnalysis
	}

	owned, err := n.tracks.TracksByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("nostalgia: load library: %w", err)
	}
	excluded := make(map[string]struct{}, len(owned))
	for _, t := range owned {
		excluded[t.SpotifyID] = struct{}{}
	}

	window := domain.FormativeYears(*user.DateOfBirth)
	entries := n.collectChartEntries(ctx, window)
	if len(entries) == 0 {
		n.log.Warn().Int("start", window.StartYear).Int("end", window.EndYear).
			Msg("no chart data for formative window")
		return nil, nil
	}

	matches := n.resolveAndScore(ctx, session, entries, clusterSet, excluded, limit)

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].distance < matches[j].distance })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	recs := make([]domain.Recommendation, 0, len(matches))
	for _, m := range matches {
		recs = append(recs, domain.Recommendation{
			SpotifyTrackID: m.track.SpotifyID,
			TrackName:      m.track.Name,
			ArtistName:     m.track.Artist,
			AlbumName:      m.track.Album,
			PreviewURL:     m.track.PreviewURL,
			ExternalURL:    m.track.ExternalURL,
			ImageURL:       m.track.ImageURL,
			Type:           domain.RecommendationNostalgia,
			Confidence:     domain.ClampConfidence(1 / (1 + m.distance)),
		})
	}

	saved, err := n.recs.SaveAll(ctx, user.ID, recs)
	if err != nil {
		return nil, fmt.Errorf("nostalgia: store recommendations: %w", err)
	}
	n.log.Info().Int64("user_id", user.ID).Int("count", len(saved)).Msg("nostalgia recommendations generated")
	return saved, nil
}

// collectChartEntries fetches each formative year's chart; a year that
// fails only narrows the candidate pool. Entries are deduplicated by
// title+artist and ordered by chart rank so stronger hits resolve first.
func (n *Nostalgia) collectChartEntries(ctx context.Context, window domain.FormativeWindow) []domain.ChartEntry {
	var entries []domain.ChartEntry
	seen := map[string]struct{}{}
	for _, year := range window.Years() {
		chart, err := n.charts.FetchChart(ctx, year)
		if err != nil {
			n.log.Warn().Err(err).Int("year", year).Msg("chart fetch failed, skipping year")
			continue
		}
		for _, e := range chart {
			key := strings.ToLower(e.Title) + "\x00" + strings.ToLower(e.Artist)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	return entries
}

// resolveAndScore resolves chart text to catalog tracks and scores each by
// its minimum distance to any taste cluster centroid. Resolution stops
// once twice the requested limit has been gathered.
func (n *Nostalgia) resolveAndScore(
	ctx context.Context,
	session domain.Session,
	entries []domain.ChartEntry,
	clusterSet []domain.Cluster,
	excluded map[string]struct{},
	limit int,
) []scoredMatch {
	var matches []scoredMatch
	resolved := map[string]struct{}{}

	for _, entry := range entries {
		if len(matches) >= limit*2 {
			break
		}
		if ctx.Err() != nil {
			break
		}

		track, err := n.catalog.SearchTrack(ctx, session.AccessToken, entry.Title, entry.Artist)
		if err != nil {
			if errors.Is(err, ports.ErrNoConfidentMatch) {
				continue
			}
			n.log.Warn().Err(err).Str("title", entry.Title).Str("artist", entry.Artist).Msg("chart entry resolution failed")
			continue
		}
		if _, owned := excluded[track.SpotifyID]; owned {
			continue
		}
		if _, dup := resolved[track.SpotifyID]; dup {
			continue
		}
		resolved[track.SpotifyID] = struct{}{}

		if !track.HasFeatures() {
			// Cannot rank without a feature vector; treat like an
			// unresolved entry.
			continue
		}
		matches = append(matches, scoredMatch{
			track:    track,
			distance: minCentroidDistance(*track.Features, clusterSet),
		})
	}
	return matches
}

// minCentroidDistance is the distance from a feature vector to the closest
// cluster centroid.
func minCentroidDistance(features domain.AudioFeatures, clusterSet []domain.Cluster) float64 {
	minDist := math.MaxFloat64
	for _, c := range clusterSet {
		if d := domain.FeatureDistance(features, c.Centroid); d < minDist {
			minDist = d
		}
	}
	return minDist
}
