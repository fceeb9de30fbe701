package spotify

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// scopes cover library reads, library writes and profile access.
var scopes = []string{
	"user-library-read",
	"user-library-modify",
	"user-read-email",
	"user-read-private",
}

// Authenticator drives the authorization-code flow with PKCE. The state
// parameter doubles as the key for the pending verifier, so the callback
// can finish an exchange started on another request.
type Authenticator struct {
	config *oauth2.Config
}

// NewAuthenticator constructs an Authenticator. authURL and tokenURL
// default to the public Spotify account service when empty.
func NewAuthenticator(clientID, clientSecret, redirectURL, authURL, tokenURL string) *Authenticator {
	if authURL == "" {
		authURL = "https://accounts.spotify.com/authorize"
	}
	if tokenURL == "" {
		tokenURL = "https://accounts.spotify.com/api/token"
	}
	return &Authenticator{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
	}
}

// BeginLogin generates a PKCE verifier and the authorization URL carrying
// its challenge. The caller stores the verifier against the state value.
func (a *Authenticator) BeginLogin(state string) (authorizeURL, verifier string) {
	verifier = oauth2.GenerateVerifier()
	authorizeURL = a.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return authorizeURL, verifier
}

// Exchange trades the callback code plus the stored verifier for tokens.
func (a *Authenticator) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := a.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: token exchange: %w", err)
	}
	return token, nil
}

// Refresh obtains a fresh access token from a refresh token.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("spotify adapter: token refresh: %w", err)
	}
	return token, nil
}
