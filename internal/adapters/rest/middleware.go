package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rewindfm/rewind/internal/core/domain"
)

type ctxKey int

const sessionKey ctxKey = iota

// sessionFrom returns the session the middleware attached to the request.
func sessionFrom(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(domain.Session)
	return s, ok
}

// requireSession resolves the X-Session-ID header (or session_id query
// param) to a session row and refreshes the access token when it has
// expired. Requests without a valid session get a 401.
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Session-ID")
		if id == "" {
			id = r.URL.Query().Get("session_id")
		}
		if id == "" {
			respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session id")
			return
		}

		sess, err := h.sessions.ByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				respondError(w, http.StatusUnauthorized, "SESSION_INVALID", "unknown session")
				return
			}
			h.respondServiceError(w, err)
			return
		}

		if !sess.TokenExpiry.IsZero() && time.Now().After(sess.TokenExpiry) {
			sess, err = h.refreshSession(r.Context(), sess)
			if err != nil {
				h.log.Warn().Err(err).Str("session_id", sess.ID).Msg("token refresh failed")
				respondError(w, http.StatusUnauthorized, "SESSION_EXPIRED", "session expired, log in again")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, sess)))
	})
}

func (h *Handler) refreshSession(ctx context.Context, sess domain.Session) (domain.Session, error) {
	token, err := h.auth.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return sess, err
	}

	refresh := token.RefreshToken
	if refresh == "" {
		refresh = sess.RefreshToken
	}
	if err := h.sessions.UpdateTokens(ctx, sess.ID, token.AccessToken, refresh, token.Expiry); err != nil {
		return sess, err
	}

	sess.AccessToken = token.AccessToken
	sess.RefreshToken = refresh
	sess.TokenExpiry = token.Expiry
	return sess, nil
}

// currentUser loads the user row behind the request's session.
func (h *Handler) currentUser(r *http.Request) (domain.Session, domain.User, error) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		return domain.Session{}, domain.User{}, domain.ErrNotFound
	}
	user, err := h.users.ByID(r.Context(), sess.UserID)
	if err != nil {
		return sess, domain.User{}, err
	}
	return sess, user, nil
}
