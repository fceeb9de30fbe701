package domain

import (
	"strings"
	"time"
)

// Cluster is one taste cluster from a completed analysis run. The centroid
// lives in the original feature space so it can be compared against raw
// catalog feature vectors.
type Cluster struct {
	ID         int
	Centroid   map[string]float64
	TrackCount int
	CreatedAt  time.Time
}

// DominantFeatures tags the centroid dimensions that stand out, using the
// same thresholds for high/low values on each feature family.
func (c Cluster) DominantFeatures() []string {
	thresholds := map[string]float64{
		"acousticness":     0.7,
		"danceability":     0.7,
		"energy":           0.7,
		"instrumentalness": 0.5,
		"liveness":         0.3,
		"speechiness":      0.3,
		"valence":          0.7,
	}

	var dominant []string
	for _, name := range FeatureNames {
		value, ok := c.Centroid[name]
		if !ok {
			continue
		}
		switch name {
		case "tempo":
			if value > 140 {
				dominant = append(dominant, "high_tempo")
			} else if value < 80 {
				dominant = append(dominant, "low_tempo")
			}
		case "loudness":
			if value > -5.0 {
				dominant = append(dominant, "high_loudness")
			}
		default:
			threshold := thresholds[name]
			if value > threshold {
				dominant = append(dominant, "high_"+name)
			} else if value < 1-threshold {
				dominant = append(dominant, "low_"+name)
			}
		}
	}
	return dominant
}

// Describe renders a short human-readable summary of the cluster's sound.
func (c Cluster) Describe() string {
	var parts []string

	energy, hasEnergy := c.Centroid["energy"]
	valence, hasValence := c.Centroid["valence"]
	if hasEnergy && hasValence {
		switch {
		case energy > 0.7 && valence > 0.7:
			parts = append(parts, "Energetic and upbeat")
		case energy > 0.7 && valence < 0.3:
			parts = append(parts, "High energy but melancholic")
		case energy < 0.3 && valence > 0.7:
			parts = append(parts, "Calm and positive")
		case energy < 0.3 && valence < 0.3:
			parts = append(parts, "Mellow and introspective")
		}
	}

	if c.Centroid["acousticness"] > 0.7 {
		parts = append(parts, "acoustic")
	}
	if c.Centroid["danceability"] > 0.7 {
		parts = append(parts, "danceable")
	}
	if c.Centroid["instrumentalness"] > 0.5 {
		parts = append(parts, "instrumental")
	}

	if tempo, ok := c.Centroid["tempo"]; ok {
		if tempo > 140 {
			parts = append(parts, "fast-paced")
		} else if tempo < 80 {
			parts = append(parts, "slow-paced")
		}
	}

	if len(parts) == 0 {
		return "Mixed characteristics"
	}
	return strings.Join(parts, ", ")
}
