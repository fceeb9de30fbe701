package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rewindfm/rewind/internal/core/domain"
)

// getJSON performs an authorized GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, accessToken, rawURL string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("spotify adapter: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("spotify adapter: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("spotify adapter: decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// FetchSavedTracks pages through the user's saved library. A limit of zero
// or less fetches everything.
func (c *Client) FetchSavedTracks(ctx context.Context, accessToken string, limit int) ([]domain.Track, error) {
	var tracks []domain.Track
	next := fmt.Sprintf("%s/me/tracks?limit=%d", c.baseURL, savedTracksPageSize)

	for next != "" {
		if limit > 0 && len(tracks) >= limit {
			break
		}

		var page savedTracksPage
		if _, err := c.getJSON(ctx, accessToken, next, &page); err != nil {
			return nil, fmt.Errorf("saved tracks page: %w", err)
		}
		for _, item := range page.Items {
			if item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, mapSavedTrack(item))
		}
		next = page.Next
	}

	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	c.log.Debug().Int("tracks", len(tracks)).Msg("saved library fetched")
	return tracks, nil
}

// SavedTrackCount returns the library's total size without paging it.
func (c *Client) SavedTrackCount(ctx context.Context, accessToken string) (int, error) {
	var page savedTracksPage
	if _, err := c.getJSON(ctx, accessToken, c.baseURL+"/me/tracks?limit=1", &page); err != nil {
		return 0, fmt.Errorf("saved track count: %w", err)
	}
	return page.Total, nil
}

// AddToLibrary saves tracks into the user's library in write-batch chunks.
func (c *Client) AddToLibrary(ctx context.Context, accessToken string, trackIDs []string) error {
	for start := 0; start < len(trackIDs); start += libraryWriteBatch {
		end := start + libraryWriteBatch
		if end > len(trackIDs) {
			end = len(trackIDs)
		}

		body, err := json.Marshal(saveTracksRequest{IDs: trackIDs[start:end]})
		if err != nil {
			return fmt.Errorf("spotify adapter: encode save request: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/me/tracks", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("spotify adapter: create save request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.doRequestWithRetry(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("spotify adapter: save status %d", resp.StatusCode)
		}
	}
	return nil
}

// CurrentUser fetches the authenticated user's profile.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (domain.User, error) {
	var profile userProfile
	if _, err := c.getJSON(ctx, accessToken, c.baseURL+"/me", &profile); err != nil {
		return domain.User{}, fmt.Errorf("current user: %w", err)
	}
	if profile.ID == "" {
		return domain.User{}, fmt.Errorf("spotify adapter: profile without id")
	}
	return domain.User{
		SpotifyID:   profile.ID,
		DisplayName: profile.DisplayName,
		Email:       profile.Email,
		Country:     profile.Country,
	}, nil
}
