package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rewindfm/rewind/internal/core/domain"
)

// FetchAudioFeatures resolves feature vectors for the given track ids in
// batches. Tracks the catalog returns no vector for are simply absent from
// the result.
func (c *Client) FetchAudioFeatures(ctx context.Context, accessToken string, trackIDs []string) (map[string]domain.AudioFeatures, error) {
	features := make(map[string]domain.AudioFeatures, len(trackIDs))

	for start := 0; start < len(trackIDs); start += audioFeaturesBatch {
		end := start + audioFeaturesBatch
		if end > len(trackIDs) {
			end = len(trackIDs)
		}

		batchURL := fmt.Sprintf("%s/audio-features?ids=%s",
			c.baseURL, url.QueryEscape(strings.Join(trackIDs[start:end], ",")))

		var body audioFeaturesResponse
		if _, err := c.getJSON(ctx, accessToken, batchURL, &body); err != nil {
			return nil, fmt.Errorf("audio features batch: %w", err)
		}

		for _, wf := range body.AudioFeatures {
			// Null entries mark tracks without features.
			if wf == nil || wf.ID == "" {
				continue
			}
			features[wf.ID] = mapFeatures(*wf)
		}
	}

	c.log.Debug().Int("requested", len(trackIDs)).Int("resolved", len(features)).Msg("audio features fetched")
	return features, nil
}

// trackFeatures resolves a single track's feature vector. A missing vector
// is returned as (nil, nil).
func (c *Client) trackFeatures(ctx context.Context, accessToken, trackID string) (*domain.AudioFeatures, error) {
	got, err := c.FetchAudioFeatures(ctx, accessToken, []string{trackID})
	if err != nil {
		return nil, err
	}
	if f, ok := got[trackID]; ok {
		return &f, nil
	}
	return nil, nil
}
