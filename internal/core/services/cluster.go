package services

import (
	"math"
	"math/rand"
	"sort"

	"github.com/muesli/clusters"

	"github.com/rewindfm/rewind/internal/core/domain"
)

// DefaultClusterCount is the fixed k for taste analysis.
const DefaultClusterCount = 10

// clusterSeed fixes the centroid initialization so re-analysis of an
// unchanged library reproduces the same partition.
const clusterSeed = 42

// maxIterations caps the Lloyd loop when duplicate feature points keep a
// cluster from stabilizing.
const maxIterations = 100

// ClusterResult is the output of one clustering pass.
type ClusterResult struct {
	Clusters []domain.Cluster
	// Assignment maps spotify track id to cluster id.
	Assignment map[string]int
	// Excluded holds tracks that lacked feature vectors and were left out.
	Excluded []domain.Track
}

// ClusterEngine partitions a library into taste clusters. Feature vectors
// are standardized to zero mean and unit variance before k-means so that
// tempo and loudness do not dominate the distance metric; centroids are
// reported in the original feature space.
type ClusterEngine struct{}

// NewClusterEngine constructs a ClusterEngine.
func NewClusterEngine() *ClusterEngine {
	return &ClusterEngine{}
}

// Analyze clusters the given tracks into at most k groups. Tracks without
// feature vectors are excluded, never fatal. When the usable track count
// is not larger than k the engine degenerates to one cluster per track
// instead of erroring.
func (e *ClusterEngine) Analyze(tracks []domain.Track, k int) (ClusterResult, error) {
	if k <= 0 {
		k = DefaultClusterCount
	}

	result := ClusterResult{Assignment: map[string]int{}}

	usable := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		if t.HasFeatures() {
			usable = append(usable, t)
		} else {
			result.Excluded = append(result.Excluded, t)
		}
	}
	if len(usable) == 0 {
		return result, nil
	}

	// Stable input order keeps the partition reproducible.
	sort.Slice(usable, func(i, j int) bool { return usable[i].SpotifyID < usable[j].SpotifyID })

	if len(usable) <= k {
		for i, t := range usable {
			result.Clusters = append(result.Clusters, domain.Cluster{
				ID:         i,
				Centroid:   t.Features.Map(),
				TrackCount: 1,
			})
			result.Assignment[t.SpotifyID] = i
		}
		return result, nil
	}

	mean, std := featureMoments(usable)

	obs := make(clusters.Observations, len(usable))
	for i, t := range usable {
		obs[i] = standardize(t.Features.Vector(), mean, std)
	}

	cc := lloydPartition(obs, k)

	// Membership comes from each observation's nearest final centroid, so
	// every track lands in exactly one cluster.
	memberIdx := make([][]int, len(cc))
	for i, o := range obs {
		n := cc.Nearest(o)
		memberIdx[n] = append(memberIdx[n], i)
	}

	for _, idxs := range memberIdx {
		if len(idxs) == 0 {
			continue
		}
		id := len(result.Clusters)

		members := make([]domain.Track, 0, len(idxs))
		for _, i := range idxs {
			track := usable[i]
			members = append(members, track)
			result.Assignment[track.SpotifyID] = id
		}

		result.Clusters = append(result.Clusters, domain.Cluster{
			ID:         id,
			Centroid:   originalSpaceCentroid(members),
			TrackCount: len(members),
		})
	}

	return result, nil
}

// lloydPartition runs Lloyd's algorithm with a locally seeded source.
// Initial centers are drawn from the observations; a cluster emptied
// during an iteration is reseeded on a random observation so k survives
// the run. Requires len(obs) > k.
func lloydPartition(obs clusters.Observations, k int) clusters.Clusters {
	rng := rand.New(rand.NewSource(clusterSeed))

	cc := make(clusters.Clusters, k)
	for i, idx := range rng.Perm(len(obs))[:k] {
		cc[i].Center = append(clusters.Coordinates{}, obs[idx].Coordinates()...)
	}

	assigned := make([]int, len(obs))
	for i := range assigned {
		assigned[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		cc.Reset()
		changes := 0
		for i, o := range obs {
			n := cc.Nearest(o)
			if assigned[i] != n {
				assigned[i] = n
				changes++
			}
			cc[n].Append(o)
		}
		for i := range cc {
			if len(cc[i].Observations) == 0 {
				cc[i].Center = append(clusters.Coordinates{}, obs[rng.Intn(len(obs))].Coordinates()...)
				changes++
			}
		}
		cc.Recenter()
		if changes == 0 {
			break
		}
	}
	return cc
}

// featureMoments computes per-dimension mean and standard deviation. A
// zero-variance dimension gets a standard deviation of one so it cancels
// out instead of dividing by zero.
func featureMoments(tracks []domain.Track) (mean, std []float64) {
	dims := len(domain.FeatureNames)
	mean = make([]float64, dims)
	std = make([]float64, dims)

	for _, t := range tracks {
		for i, v := range t.Features.Vector() {
			mean[i] += v
		}
	}
	n := float64(len(tracks))
	for i := range mean {
		mean[i] /= n
	}

	for _, t := range tracks {
		for i, v := range t.Features.Vector() {
			d := v - mean[i]
			std[i] += d * d
		}
	}
	for i := range std {
		std[i] = math.Sqrt(std[i] / n)
		if std[i] == 0 {
			std[i] = 1
		}
	}
	return mean, std
}

func standardize(vec, mean, std []float64) clusters.Coordinates {
	out := make(clusters.Coordinates, len(vec))
	for i, v := range vec {
		out[i] = (v - mean[i]) / std[i]
	}
	return out
}

// originalSpaceCentroid averages member feature vectors in the raw feature
// space, so the stored centroid is directly comparable with catalog
// feature vectors.
func originalSpaceCentroid(members []domain.Track) map[string]float64 {
	centroid := make(map[string]float64, len(domain.FeatureNames))
	if len(members) == 0 {
		return centroid
	}
	for _, t := range members {
		for name, v := range t.Features.Map() {
			centroid[name] += v
		}
	}
	for name := range centroid {
		centroid[name] /= float64(len(members))
	}
	return centroid
}
