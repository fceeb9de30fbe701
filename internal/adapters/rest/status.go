package rest

import (
	"errors"
	"net/http"

	"github.com/rewindfm/rewind/internal/core/domain"
)

type libraryStatus struct {
	StoredTracks int `json:"stored_tracks"`
	// SavedTracks is the library size reported by the catalog; zero when
	// the catalog is unreachable.
	SavedTracks int `json:"saved_tracks"`
}

type analysisStatus struct {
	Status  string `json:"status"`
	Step    string `json:"step,omitempty"`
	Percent int    `json:"percent"`
}

type rateLimitStatus struct {
	CanGenerate bool `json:"can_generate"`
}

type statusResponse struct {
	User      userResponse    `json:"user"`
	Library   libraryStatus   `json:"library"`
	Analysis  *analysisStatus `json:"analysis,omitempty"`
	RateLimit rateLimitStatus `json:"rate_limit"`
}

// Status summarizes the session's account: library size, analysis state and
// whether a generation is currently allowed.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sess, user, err := h.currentUser(r)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	resp := statusResponse{User: toUserResponse(user)}

	count, err := h.tracks.TrackCount(r.Context(), sess.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	resp.Library.StoredTracks = count

	saved, err := h.catalog.SavedTrackCount(r.Context(), sess.AccessToken)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", sess.UserID).Msg("saved track count lookup failed")
	} else {
		resp.Library.SavedTracks = saved
	}

	progress, err := h.analyzer.Progress(r.Context(), sess.UserID)
	switch {
	case err == nil:
		resp.Analysis = &analysisStatus{
			Status:  string(progress.Status),
			Step:    progress.Step,
			Percent: progress.Percent,
		}
	case !errors.Is(err, domain.ErrNotFound):
		h.respondServiceError(w, err)
		return
	}

	allowed, err := h.limiter.MayGenerate(r.Context(), sess.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	resp.RateLimit.CanGenerate = allowed

	respondJSON(w, http.StatusOK, resp)
}
