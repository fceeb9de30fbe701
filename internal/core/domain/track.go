package domain

import (
	"math"
	"time"
)

// FeatureNames is the canonical ordering of the audio feature dimensions
// used for clustering and distance calculations.
var FeatureNames = []string{
	"acousticness",
	"danceability",
	"energy",
	"instrumentalness",
	"liveness",
	"loudness",
	"speechiness",
	"tempo",
	"valence",
}

// AudioFeatures is a track's numeric audio feature vector. All dimensions
// are in [0,1] except Tempo (BPM) and Loudness (dB), which are unbounded.
type AudioFeatures struct {
	Acousticness     float64
	Danceability     float64
	Energy           float64
	Instrumentalness float64
	Liveness         float64
	Loudness         float64
	Speechiness      float64
	Tempo            float64
	Valence          float64

	Key           int
	Mode          int
	TimeSignature int
}

// Vector returns the feature values in FeatureNames order.
func (f AudioFeatures) Vector() []float64 {
	return []float64{
		f.Acousticness,
		f.Danceability,
		f.Energy,
		f.Instrumentalness,
		f.Liveness,
		f.Loudness,
		f.Speechiness,
		f.Tempo,
		f.Valence,
	}
}

// Map returns the feature vector keyed by feature name.
func (f AudioFeatures) Map() map[string]float64 {
	vec := f.Vector()
	m := make(map[string]float64, len(FeatureNames))
	for i, name := range FeatureNames {
		m[name] = vec[i]
	}
	return m
}

// featureScale brings the unbounded dimensions into the same order of
// magnitude as the [0,1] features when computing raw-space distances.
// Tempo spans roughly 0-250 BPM, loudness roughly -60..0 dB.
func featureScale(name string) float64 {
	switch name {
	case "tempo":
		return 1.0 / 250.0
	case "loudness":
		return 1.0 / 60.0
	default:
		return 1.0
	}
}

// FeatureDistance computes a scaled Euclidean distance between a feature
// vector and a centroid in the original (unstandardized) feature space.
// Dimensions absent from the centroid are skipped.
func FeatureDistance(features AudioFeatures, centroid map[string]float64) float64 {
	fm := features.Map()
	var sum float64
	var dims int
	for _, name := range FeatureNames {
		c, ok := centroid[name]
		if !ok {
			continue
		}
		s := featureScale(name)
		d := (fm[name] - c) * s
		sum += d * d
		dims++
	}
	if dims == 0 {
		return math.MaxFloat64
	}
	return math.Sqrt(sum / float64(dims))
}

// Track is a catalog track saved in the user's library. Metadata is
// immutable once fetched; only the cluster assignment changes between
// analysis runs.
type Track struct {
	SpotifyID   string
	Name        string
	Artist      string
	Album       string
	DurationMs  int
	Popularity  int
	Explicit    bool
	PreviewURL  string
	ExternalURL string
	ImageURL    string
	AddedAt     time.Time
	ReleaseDate string

	// Features is nil when the catalog could not supply a feature vector.
	Features *AudioFeatures

	// ClusterID is nil until an analysis run assigns the track.
	ClusterID *int
}

// HasFeatures reports whether the track can participate in clustering.
func (t Track) HasFeatures() bool {
	return t.Features != nil
}
