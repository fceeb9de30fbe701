package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rewindfm/rewind/internal/core/domain"
)

// stateStore holds PKCE verifiers keyed by the OAuth state parameter until
// the callback consumes them.
type stateStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]stateEntry
}

type stateEntry struct {
	verifier string
	expires  time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{ttl: ttl, entries: make(map[string]stateEntry)}
}

func (s *stateStore) put(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = stateEntry{verifier: verifier, expires: now.Add(s.ttl)}
}

// take consumes the verifier for a state; a state is valid exactly once.
func (s *stateStore) take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[state]
	if !ok {
		return "", false
	}
	delete(s.entries, state)
	if time.Now().After(e.expires) {
		return "", false
	}
	return e.verifier, true
}

type loginResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// Login starts the authorization-code flow and hands the client the URL to
// redirect the user to.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	authURL, verifier := h.auth.BeginLogin(state)
	h.states.put(state, verifier)
	respondJSON(w, http.StatusOK, loginResponse{AuthURL: authURL, State: state})
}

type callbackResponse struct {
	SessionID string       `json:"session_id"`
	User      userResponse `json:"user"`
}

type userResponse struct {
	ID          int64  `json:"id"`
	SpotifyID   string `json:"spotify_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Country     string `json:"country,omitempty"`
	Onboarded   bool   `json:"onboarded"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:          u.ID,
		SpotifyID:   u.SpotifyID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Country:     u.Country,
		Onboarded:   u.DateOfBirth != nil,
	}
}

// Callback finishes the flow: exchanges the code, upserts the user and
// creates a session.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "code and state are required")
		return
	}

	verifier, ok := h.states.take(state)
	if !ok {
		respondError(w, http.StatusBadRequest, "STATE_INVALID", "unknown or expired state")
		return
	}

	token, err := h.auth.Exchange(r.Context(), code, verifier)
	if err != nil {
		h.log.Warn().Err(err).Msg("token exchange failed")
		respondError(w, http.StatusBadGateway, "AUTH_EXCHANGE_FAILED", "could not exchange authorization code")
		return
	}

	profile, err := h.profile.CurrentUser(r.Context(), token.AccessToken)
	if err != nil {
		h.log.Warn().Err(err).Msg("profile fetch failed")
		respondError(w, http.StatusBadGateway, "PROFILE_FETCH_FAILED", "could not load account profile")
		return
	}

	user, err := h.users.UpsertBySpotifyID(r.Context(), profile)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	sess := domain.Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
	}
	if err := h.sessions.Create(r.Context(), sess); err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.log.Info().Int64("user_id", user.ID).Msg("user logged in")
	respondJSON(w, http.StatusOK, callbackResponse{SessionID: sess.ID, User: toUserResponse(user)})
}

type onboardingRequest struct {
	DateOfBirth string `json:"date_of_birth"`
}

// Onboarding records the user's date of birth, enabling the nostalgia
// pipeline.
func (h *Handler) Onboarding(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session")
		return
	}

	var req onboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "date_of_birth must be YYYY-MM-DD")
		return
	}
	if err := domain.ValidateDateOfBirth(dob, time.Now()); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", validationMessage(err))
		return
	}

	if err := h.users.SetDateOfBirth(r.Context(), sess.UserID, dob); err != nil {
		h.respondServiceError(w, err)
		return
	}

	user, err := h.users.ByID(r.Context(), sess.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toUserResponse(user))
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrDateOfBirthFuture):
		return "date of birth cannot be in the future"
	case errors.Is(err, domain.ErrTooYoung):
		return "you must be at least 13 years old"
	case errors.Is(err, domain.ErrImplausibleAge):
		return "date of birth is implausibly far in the past"
	default:
		return err.Error()
	}
}
