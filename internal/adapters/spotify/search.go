package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

const searchResultLimit = 5

// SearchTrack resolves chart text to a catalog track. Candidates are
// scored by fuzzy title and artist similarity; nothing above the
// confidence thresholds yields a NoConfidentMatchError. The winner is
// enriched with its audio feature vector when one exists.
func (c *Client) SearchTrack(ctx context.Context, accessToken, title, artist string) (domain.Track, error) {
	searchURL, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return domain.Track{}, fmt.Errorf("spotify adapter: invalid search url: %w", err)
	}

	normalizedTitle := normalizeSearchInput(title)
	normalizedArtist := normalizeSearchInput(artist)
	queryTitle := fallbackIfEmpty(normalizedTitle, title)
	queryArtist := fallbackIfEmpty(normalizedArtist, artist)

	params := searchURL.Query()
	params.Set("q", fmt.Sprintf("track:%s artist:%s", queryTitle, queryArtist))
	params.Set("type", "track")
	params.Set("limit", fmt.Sprintf("%d", searchResultLimit))
	searchURL.RawQuery = params.Encode()

	var body searchResponse
	status, err := c.getJSON(ctx, accessToken, searchURL.String(), &body)
	if err != nil {
		if status == http.StatusNotFound {
			return domain.Track{}, ports.NoConfidentMatchError{Title: title, Artist: artist}
		}
		return domain.Track{}, fmt.Errorf("track search: %w", err)
	}

	best := -1
	bestScore := 0.0
	for i, candidate := range body.Tracks.Items {
		score, ok := trackMatchScore(title, artist, candidate)
		c.log.Debug().Str("candidate", candidate.Name).Float64("score", score).Bool("accepted", ok).Msg("search candidate scored")
		if ok && score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best == -1 {
		return domain.Track{}, ports.NoConfidentMatchError{Title: title, Artist: artist}
	}

	winner := mapTrack(body.Tracks.Items[best], nil)
	features, err := c.trackFeatures(ctx, accessToken, winner.SpotifyID)
	if err != nil {
		c.log.Warn().Err(err).Str("track", winner.SpotifyID).Msg("feature lookup for search winner failed")
	} else {
		winner.Features = features
	}
	return winner, nil
}
