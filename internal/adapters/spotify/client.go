package spotify

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/ports"
)

const (
	// Spotify caps page sizes per endpoint.
	savedTracksPageSize = 50
	audioFeaturesBatch  = 100
	libraryWriteBatch   = 50
)

// Client talks to the Spotify Web API on behalf of a user session. All
// catalog methods take the session's access token; the client holds no
// credentials of its own.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	baseBackoff time.Duration
	log         zerolog.Logger
}

// compile-time interface assertion
var _ ports.CatalogProvider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry count and initial backoff.
func WithRetry(maxRetries int, baseBackoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseBackoff = baseBackoff
	}
}

// NewClient constructs a Spotify client against baseURL.
func NewClient(httpClient *http.Client, baseURL string, log zerolog.Logger, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		log:        log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
