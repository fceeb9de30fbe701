package services

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

const (
	// Confidence blends inverse feature distance with normalized
	// popularity; distance stays dominant so closer-and-more-popular
	// always outranks farther-and-less-popular.
	confidenceDistanceWeight   = 0.6
	confidencePopularityWeight = 0.4

	// neutralDistance stands in for candidates whose feature vector the
	// catalog did not return.
	neutralDistance = 0.5

	maxSeedsPerQuery = 5
)

// Recommender generates cluster-based recommendations: for each taste
// cluster it queries the catalog for candidates near the centroid, drops
// tracks the user already owns and ranks the rest by confidence.
type Recommender struct {
	catalog  ports.CatalogProvider
	tracks   ports.TrackRepository
	clusters ports.ClusterRepository
	recs     ports.RecommendationRepository
	log      zerolog.Logger
}

// NewRecommender constructs a Recommender.
func NewRecommender(
	catalog ports.CatalogProvider,
	tracks ports.TrackRepository,
	clusters ports.ClusterRepository,
	recs ports.RecommendationRepository,
	log zerolog.Logger,
) *Recommender {
	return &Recommender{catalog: catalog, tracks: tracks, clusters: clusters, recs: recs, log: log}
}

// Generate produces up to limit cluster-based recommendations for the
// session's user and persists them. Fewer than limit is not an error.
func (r *Recommender) Generate(ctx context.Context, session domain.Session, limit int) ([]domain.Recommendation, error) {
	userID := session.UserID

	clusterSet, err := r.clusters.ClustersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommender: load clusters: %w", err)
	}
	if len(clusterSet) == 0 {
		return nil, ErrNoAnalysis
	}

	owned, err := r.tracks.TracksByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("recommender: load library: %w", err)
	}
	excluded := make(map[string]struct{}, len(owned))
	for _, t := range owned {
		excluded[t.SpotifyID] = struct{}{}
	}

	perCluster := limit / len(clusterSet)
	if perCluster < 1 {
		perCluster = 1
	}

	var out []domain.Recommendation
	for _, cluster := range clusterSet {
		recs, err := r.generateForCluster(ctx, session, cluster, perCluster, excluded)
		if err != nil {
			r.log.Warn().Err(err).Int("cluster", cluster.ID).Msg("cluster candidate fetch failed")
			continue
		}
		out = append(out, recs...)
	}

	// Spread results across clusters before capping, then rank.
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > limit {
		out = out[:limit]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })

	saved, err := r.recs.SaveAll(ctx, userID, out)
	if err != nil {
		return nil, fmt.Errorf("recommender: store recommendations: %w", err)
	}
	r.log.Info().Int64("user_id", userID).Int("count", len(saved)).Msg("cluster recommendations generated")
	return saved, nil
}

func (r *Recommender) generateForCluster(
	ctx context.Context,
	session domain.Session,
	cluster domain.Cluster,
	limit int,
	excluded map[string]struct{},
) ([]domain.Recommendation, error) {
	members, err := r.tracks.TracksByCluster(ctx, session.UserID, cluster.ID)
	if err != nil {
		return nil, fmt.Errorf("load cluster tracks: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	var seedIDs, seedArtists []string
	seenArtists := map[string]struct{}{}
	for _, t := range members {
		if len(seedIDs) < maxSeedsPerQuery {
			seedIDs = append(seedIDs, t.SpotifyID)
		}
		if _, ok := seenArtists[t.Artist]; !ok && len(seedArtists) < maxSeedsPerQuery {
			seenArtists[t.Artist] = struct{}{}
			seedArtists = append(seedArtists, t.Artist)
		}
	}

	candidates, err := r.catalog.SeededRecommendations(ctx, session.AccessToken, ports.SeedQuery{
		SeedTrackIDs: seedIDs,
		SeedArtists:  seedArtists,
		Target:       cluster.Centroid,
		Limit:        limit * 2,
	})
	if err != nil {
		return nil, fmt.Errorf("seeded recommendations: %w", err)
	}

	return scoreCandidates(candidates, cluster, excluded, limit), nil
}

// scoreCandidates filters excluded ids and ranks the remainder by
// confidence, descending.
func scoreCandidates(
	candidates []domain.Track,
	cluster domain.Cluster,
	excluded map[string]struct{},
	limit int,
) []domain.Recommendation {
	clusterID := cluster.ID
	recs := make([]domain.Recommendation, 0, len(candidates))
	for _, c := range candidates {
		if _, owned := excluded[c.SpotifyID]; owned {
			continue
		}
		dist := neutralDistance
		if c.HasFeatures() {
			dist = domain.FeatureDistance(*c.Features, cluster.Centroid)
		}
		srcCluster := clusterID
		recs = append(recs, domain.Recommendation{
			SpotifyTrackID:  c.SpotifyID,
			TrackName:       c.Name,
			ArtistName:      c.Artist,
			AlbumName:       c.Album,
			PreviewURL:      c.PreviewURL,
			ExternalURL:     c.ExternalURL,
			ImageURL:        c.ImageURL,
			Type:            domain.RecommendationCluster,
			SourceClusterID: &srcCluster,
			Confidence:      confidenceScore(dist, c.Popularity),
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Confidence > recs[j].Confidence })
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// confidenceScore blends inverse distance with normalized popularity into
// a value in [0,1].
func confidenceScore(distance float64, popularity int) float64 {
	if distance < 0 {
		distance = 0
	}
	pop := float64(popularity) / 100.0
	if pop < 0 {
		pop = 0
	} else if pop > 1 {
		pop = 1
	}
	score := confidenceDistanceWeight*(1/(1+distance)) + confidencePopularityWeight*pop
	return domain.ClampConfidence(score)
}
