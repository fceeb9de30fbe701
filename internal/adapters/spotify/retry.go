package spotify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
)

// doRequestWithRetry executes req, retrying on transport errors, 429 and
// 5xx responses. A Retry-After header overrides the exponential backoff.
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	maxRetries := c.maxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	baseBackoff := c.baseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBackoff
	}

	if req.Body != nil && req.GetBody == nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("spotify adapter: read request body: %w", err)
		}
		_ = req.Body.Close()
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
	}

	ctx := req.Context()
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("spotify adapter: request canceled: %w", err)
		}

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("spotify adapter: reset request body: %w", err)
			}
			req.Body = body
		}

		resp, err := c.httpClient.Do(req)
		retryAfter, retry := shouldRetry(resp, err)
		if !retry {
			return resp, err
		}

		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt+1).Int("max", maxRetries).Msg("spotify request retry after error")
		} else if resp != nil {
			c.log.Warn().Int("status", resp.StatusCode).Int("attempt", attempt+1).Int("max", maxRetries).Msg("spotify request retry after status")
			_ = resp.Body.Close()
		}

		if attempt == maxRetries-1 {
			if err != nil {
				return nil, fmt.Errorf("spotify adapter: request failed after %d attempts: %w", maxRetries, err)
			}
			if resp != nil {
				return nil, fmt.Errorf("spotify adapter: request failed after %d attempts: status %d", maxRetries, resp.StatusCode)
			}
			return nil, fmt.Errorf("spotify adapter: request failed after %d attempts", maxRetries)
		}

		backoff := baseBackoff * time.Duration(1<<attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		if err := sleepWithContext(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("spotify adapter: request failed after %d attempts", maxRetries)
}

func shouldRetry(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		return 0, true
	}
	if resp == nil {
		return 0, false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return parseRetryAfter(resp), true
	}
	return 0, false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(retryAfter); err == nil {
		if until := time.Until(when); until > 0 {
			return until
		}
	}
	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("spotify adapter: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
