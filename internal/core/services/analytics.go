package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

// minTracksPerQuarter filters out quarters too thin to say anything about
// taste.
const minTracksPerQuarter = 3

// Analytics aggregates dashboard views over the persisted library,
// clusters and recommendation history.
type Analytics struct {
	tracks   ports.TrackRepository
	clusters ports.ClusterRepository
	recs     ports.RecommendationRepository
}

// NewAnalytics constructs an Analytics service.
func NewAnalytics(tracks ports.TrackRepository, clusters ports.ClusterRepository, recs ports.RecommendationRepository) *Analytics {
	return &Analytics{tracks: tracks, clusters: clusters, recs: recs}
}

// ClusterSummary is one cluster with its derived characteristics.
type ClusterSummary struct {
	ClusterID        int                `json:"cluster_id"`
	Centroid         map[string]float64 `json:"centroid"`
	TrackCount       int                `json:"track_count"`
	DominantFeatures []string           `json:"dominant_features"`
	Description      string             `json:"description"`
	SampleTracks     []TrackSummary     `json:"sample_tracks"`
}

// TrackSummary is the track subset shown on dashboards.
type TrackSummary struct {
	SpotifyID  string     `json:"spotify_id"`
	Name       string     `json:"name"`
	ArtistName string     `json:"artist_name"`
	AlbumName  string     `json:"album_name,omitempty"`
	ImageURL   string     `json:"image_url,omitempty"`
	AddedAt    *time.Time `json:"added_at,omitempty"`
}

// ArtistCount is an artist with its library frequency.
type ArtistCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// OverviewReport is the top-level analytics view.
type OverviewReport struct {
	TotalTracks     int                     `json:"total_tracks"`
	Clusters        []ClusterSummary        `json:"clusters"`
	TopArtists      []ArtistCount           `json:"top_artists"`
	FeatureAverages map[string]float64      `json:"audio_features_summary"`
	FormativeWindow *domain.FormativeWindow `json:"formative_years,omitempty"`
}

// Overview assembles the analytics overview for a user.
func (a *Analytics) Overview(ctx context.Context, user domain.User) (OverviewReport, error) {
	tracks, err := a.tracks.TracksByUser(ctx, user.ID)
	if err != nil {
		return OverviewReport{}, fmt.Errorf("analytics: load library: %w", err)
	}

	report := OverviewReport{
		TotalTracks:     len(tracks),
		FeatureAverages: featureAverages(tracks),
		TopArtists:      topArtists(tracks, 10),
	}
	if user.DateOfBirth != nil {
		w := domain.FormativeYears(*user.DateOfBirth)
		report.FormativeWindow = &w
	}
	if len(tracks) == 0 {
		return report, nil
	}

	clusterSet, err := a.clusters.ClustersByUser(ctx, user.ID)
	if err != nil {
		return OverviewReport{}, fmt.Errorf("analytics: load clusters: %w", err)
	}
	for _, c := range clusterSet {
		summary, err := a.summarizeCluster(ctx, user.ID, c)
		if err != nil {
			return OverviewReport{}, err
		}
		report.Clusters = append(report.Clusters, summary)
	}
	return report, nil
}

func (a *Analytics) summarizeCluster(ctx context.Context, userID int64, c domain.Cluster) (ClusterSummary, error) {
	members, err := a.tracks.TracksByCluster(ctx, userID, c.ID)
	if err != nil {
		return ClusterSummary{}, fmt.Errorf("analytics: cluster %d tracks: %w", c.ID, err)
	}
	samples := make([]TrackSummary, 0, 5)
	for _, t := range members {
		if len(samples) == 5 {
			break
		}
		samples = append(samples, trackSummary(t))
	}
	return ClusterSummary{
		ClusterID:        c.ID,
		Centroid:         c.Centroid,
		TrackCount:       c.TrackCount,
		DominantFeatures: c.DominantFeatures(),
		Description:      c.Describe(),
		SampleTracks:     samples,
	}, nil
}

// EvolutionPeriod is one quarter of listening history.
type EvolutionPeriod struct {
	Period      string             `json:"period"`
	TrackCount  int                `json:"track_count"`
	AvgFeatures map[string]float64 `json:"avg_features"`
	TopArtists  []ArtistCount      `json:"top_artists"`
	Start       time.Time          `json:"start"`
	End         time.Time          `json:"end"`
}

// TasteEvolution groups library additions by calendar quarter and averages
// their features. Quarters with fewer than three tracks are skipped.
func (a *Analytics) TasteEvolution(ctx context.Context, userID int64) ([]EvolutionPeriod, error) {
	tracks, err := a.tracks.TracksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("analytics: load library: %w", err)
	}

	byQuarter := map[string][]domain.Track{}
	for _, t := range tracks {
		if t.AddedAt.IsZero() {
			continue
		}
		q := fmt.Sprintf("%d-Q%d", t.AddedAt.Year(), (int(t.AddedAt.Month())-1)/3+1)
		byQuarter[q] = append(byQuarter[q], t)
	}

	var evolution []EvolutionPeriod
	for period, quarterTracks := range byQuarter {
		if len(quarterTracks) < minTracksPerQuarter {
			continue
		}
		start, end := quarterTracks[0].AddedAt, quarterTracks[0].AddedAt
		for _, t := range quarterTracks[1:] {
			if t.AddedAt.Before(start) {
				start = t.AddedAt
			}
			if t.AddedAt.After(end) {
				end = t.AddedAt
			}
		}
		evolution = append(evolution, EvolutionPeriod{
			Period:      period,
			TrackCount:  len(quarterTracks),
			AvgFeatures: featureAverages(quarterTracks),
			TopArtists:  topArtists(quarterTracks, 5),
			Start:       start,
			End:         end,
		})
	}

	sort.Slice(evolution, func(i, j int) bool { return evolution[i].Period < evolution[j].Period })
	return evolution, nil
}

// TypeStats counts recommendations of one type.
type TypeStats struct {
	Count int `json:"count"`
	Liked int `json:"liked"`
}

// RecommendationStats summarizes feedback across the recommendation
// history.
type RecommendationStats struct {
	Total           int                   `json:"total_recommendations"`
	LikedCount      int                   `json:"liked_count"`
	DislikedCount   int                   `json:"disliked_count"`
	AlreadyKnew     int                   `json:"already_knew_count"`
	PendingFeedback int                   `json:"pending_feedback"`
	LikeRate        float64               `json:"like_rate"`
	ByType          map[string]*TypeStats `json:"by_type"`
	ByCluster       map[int]*TypeStats    `json:"by_cluster"`
}

// Stats aggregates recommendation feedback for a user.
func (a *Analytics) Stats(ctx context.Context, userID int64) (RecommendationStats, error) {
	recs, err := a.recs.ByUser(ctx, userID, 0, 0)
	if err != nil {
		return RecommendationStats{}, fmt.Errorf("analytics: load recommendations: %w", err)
	}

	stats := RecommendationStats{
		Total:     len(recs),
		ByType:    map[string]*TypeStats{},
		ByCluster: map[int]*TypeStats{},
	}
	for _, r := range recs {
		liked := r.Liked != nil && *r.Liked
		switch {
		case liked:
			stats.LikedCount++
		case r.Liked != nil:
			stats.DislikedCount++
		}
		if r.AlreadyKnew != nil && *r.AlreadyKnew {
			stats.AlreadyKnew++
		}
		if r.Liked == nil && r.AlreadyKnew == nil {
			stats.PendingFeedback++
		}

		ts, ok := stats.ByType[string(r.Type)]
		if !ok {
			ts = &TypeStats{}
			stats.ByType[string(r.Type)] = ts
		}
		ts.Count++
		if liked {
			ts.Liked++
		}

		if r.SourceClusterID != nil {
			cs, ok := stats.ByCluster[*r.SourceClusterID]
			if !ok {
				cs = &TypeStats{}
				stats.ByCluster[*r.SourceClusterID] = cs
			}
			cs.Count++
			if liked {
				cs.Liked++
			}
		}
	}
	if stats.Total > 0 {
		stats.LikeRate = float64(stats.LikedCount) / float64(stats.Total)
	}
	return stats, nil
}

// HistogramBin is one bucket of a feature distribution.
type HistogramBin struct {
	BinStart   float64 `json:"bin_start"`
	BinEnd     float64 `json:"bin_end"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// FeatureDistribution describes one audio feature across the library.
type FeatureDistribution struct {
	Mean      float64        `json:"mean"`
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
	Histogram []HistogramBin `json:"histogram"`
	Tracks    int            `json:"total_tracks"`
}

// Distributions builds per-feature histograms over the library. Tempo and
// loudness get their own bin edges; everything else uses uniform [0,1]
// buckets.
func (a *Analytics) Distributions(ctx context.Context, userID int64) (map[string]FeatureDistribution, error) {
	tracks, err := a.tracks.TracksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("analytics: load library: %w", err)
	}

	out := make(map[string]FeatureDistribution, len(domain.FeatureNames))
	for _, name := range domain.FeatureNames {
		var values []float64
		for _, t := range tracks {
			if t.HasFeatures() {
				values = append(values, t.Features.Map()[name])
			}
		}
		if len(values) == 0 {
			continue
		}

		var bins []float64
		switch name {
		case "tempo":
			bins = []float64{0, 80, 100, 120, 140, 160, 200, 300}
		case "loudness":
			bins = []float64{-60, -30, -20, -10, -5, 0, 5}
		default:
			bins = []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0}
		}

		sum, minV, maxV := 0.0, values[0], values[0]
		for _, v := range values {
			sum += v
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		out[name] = FeatureDistribution{
			Mean:      sum / float64(len(values)),
			Min:       minV,
			Max:       maxV,
			Histogram: histogram(values, bins),
			Tracks:    len(values),
		}
	}
	return out, nil
}

// ClusterDetailReport is one cluster's dashboard drill-down.
type ClusterDetailReport struct {
	Cluster         ClusterSummary          `json:"cluster"`
	Tracks          []TrackSummary          `json:"tracks"`
	Recommendations []domain.Recommendation `json:"-"`
}

// ClusterDetail loads one cluster with its member tracks and the
// recommendations generated from it.
func (a *Analytics) ClusterDetail(ctx context.Context, userID int64, clusterID int) (ClusterDetailReport, error) {
	clusterSet, err := a.clusters.ClustersByUser(ctx, userID)
	if err != nil {
		return ClusterDetailReport{}, fmt.Errorf("analytics: load clusters: %w", err)
	}
	var cluster *domain.Cluster
	for i := range clusterSet {
		if clusterSet[i].ID == clusterID {
			cluster = &clusterSet[i]
			break
		}
	}
	if cluster == nil {
		return ClusterDetailReport{}, domain.ErrNotFound
	}

	summary, err := a.summarizeCluster(ctx, userID, *cluster)
	if err != nil {
		return ClusterDetailReport{}, err
	}

	members, err := a.tracks.TracksByCluster(ctx, userID, clusterID)
	if err != nil {
		return ClusterDetailReport{}, fmt.Errorf("analytics: cluster tracks: %w", err)
	}
	trackViews := make([]TrackSummary, 0, len(members))
	for _, t := range members {
		trackViews = append(trackViews, trackSummary(t))
	}

	recs, err := a.recs.BySourceCluster(ctx, userID, clusterID, 10)
	if err != nil {
		return ClusterDetailReport{}, fmt.Errorf("analytics: cluster recommendations: %w", err)
	}

	return ClusterDetailReport{Cluster: summary, Tracks: trackViews, Recommendations: recs}, nil
}

func trackSummary(t domain.Track) TrackSummary {
	s := TrackSummary{
		SpotifyID:  t.SpotifyID,
		Name:       t.Name,
		ArtistName: t.Artist,
		AlbumName:  t.Album,
		ImageURL:   t.ImageURL,
	}
	if !t.AddedAt.IsZero() {
		added := t.AddedAt
		s.AddedAt = &added
	}
	return s
}

func featureAverages(tracks []domain.Track) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, t := range tracks {
		if !t.HasFeatures() {
			continue
		}
		for name, v := range t.Features.Map() {
			sums[name] += v
			counts[name]++
		}
	}
	avgs := make(map[string]float64, len(sums))
	for name, sum := range sums {
		avgs[name] = sum / float64(counts[name])
	}
	return avgs
}

// topArtists counts first-listed artists, the same proxy the dashboards
// use for genre.
func topArtists(tracks []domain.Track, limit int) []ArtistCount {
	counts := map[string]int{}
	for _, t := range tracks {
		artist := strings.TrimSpace(strings.SplitN(t.Artist, ",", 2)[0])
		if artist == "" {
			continue
		}
		counts[artist]++
	}
	out := make([]ArtistCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, ArtistCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func histogram(values, bins []float64) []HistogramBin {
	out := make([]HistogramBin, 0, len(bins)-1)
	for i := 0; i < len(bins)-1; i++ {
		start, end := bins[i], bins[i+1]
		count := 0
		for _, v := range values {
			if i == len(bins)-2 {
				if v >= start && v <= end {
					count++
				}
			} else if v >= start && v < end {
				count++
			}
		}
		out = append(out, HistogramBin{
			BinStart:   start,
			BinEnd:     end,
			Count:      count,
			Percentage: float64(count) / float64(len(values)) * 100,
		})
	}
	return out
}
