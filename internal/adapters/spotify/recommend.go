package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

// targetableFeatures are the centroid dimensions the recommendations
// endpoint accepts as target_* parameters.
var targetableFeatures = map[string]struct{}{
	"acousticness":     {},
	"danceability":     {},
	"energy":           {},
	"instrumentalness": {},
	"liveness":         {},
	"loudness":         {},
	"speechiness":      {},
	"tempo":            {},
	"valence":          {},
}

// SeededRecommendations queries the recommendations endpoint with up to
// five seeds and the cluster centroid as feature targets.
func (c *Client) SeededRecommendations(ctx context.Context, accessToken string, q ports.SeedQuery) ([]domain.Track, error) {
	if len(q.SeedTrackIDs) == 0 && len(q.SeedArtists) == 0 {
		return nil, fmt.Errorf("spotify adapter: seeded recommendations need at least one seed")
	}

	recURL, err := url.Parse(c.baseURL + "/recommendations")
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: invalid recommendations url: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	params := recURL.Query()
	params.Set("limit", strconv.Itoa(limit))
	if len(q.SeedTrackIDs) > 0 {
		params.Set("seed_tracks", strings.Join(capSeeds(q.SeedTrackIDs), ","))
	}
	if len(q.SeedArtists) > 0 {
		params.Set("seed_artists", strings.Join(capSeeds(q.SeedArtists), ","))
	}
	for name, value := range q.Target {
		if _, ok := targetableFeatures[name]; !ok {
			continue
		}
		params.Set("target_"+name, strconv.FormatFloat(value, 'f', 4, 64))
	}
	recURL.RawQuery = params.Encode()

	var body recommendationsResponse
	if _, err := c.getJSON(ctx, accessToken, recURL.String(), &body); err != nil {
		return nil, fmt.Errorf("seeded recommendations: %w", err)
	}

	tracks := make([]domain.Track, 0, len(body.Tracks))
	ids := make([]string, 0, len(body.Tracks))
	for _, wt := range body.Tracks {
		if wt.ID == "" {
			continue
		}
		tracks = append(tracks, mapTrack(wt, nil))
		ids = append(ids, wt.ID)
	}

	// Candidates are ranked by feature distance downstream, so resolve
	// their vectors in the same call. A failed lookup only loses ranking
	// precision, not candidates.
	if len(ids) > 0 {
		features, err := c.FetchAudioFeatures(ctx, accessToken, ids)
		if err != nil {
			c.log.Warn().Err(err).Msg("candidate feature lookup failed, ranking without vectors")
		} else {
			for i := range tracks {
				if f, ok := features[tracks[i].SpotifyID]; ok {
					fv := f
					tracks[i].Features = &fv
				}
			}
		}
	}

	return tracks, nil
}

// capSeeds enforces the endpoint's five-seed maximum.
func capSeeds(seeds []string) []string {
	if len(seeds) > 5 {
		return seeds[:5]
	}
	return seeds
}
