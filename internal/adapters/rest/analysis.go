package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rewindfm/rewind/internal/core/domain"
)

type startAnalysisRequest struct {
	TrackLimit int `json:"track_limit"`
}

// StartAnalysis kicks off a background analysis run and returns 202. An
// in-flight run for the same user is superseded.
func (h *Handler) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session")
		return
	}

	var req startAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.TrackLimit < 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "track_limit must not be negative")
		return
	}

	if err := h.analyzer.Start(sess, req.TrackLimit); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

type progressResponse struct {
	Status          string     `json:"status"`
	Step            string     `json:"step,omitempty"`
	Percent         int        `json:"percent"`
	TracksProcessed int        `json:"tracks_processed"`
	TotalTracks     int        `json:"total_tracks"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// AnalysisProgress returns the polled progress record.
func (h *Handler) AnalysisProgress(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session")
		return
	}

	p, err := h.analyzer.Progress(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "no analysis has been started")
			return
		}
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, progressResponse{
		Status:          string(p.Status),
		Step:            p.Step,
		Percent:         p.Percent,
		TracksProcessed: p.TracksProcessed,
		TotalTracks:     p.TotalTracks,
		ErrorMessage:    p.ErrorMessage,
		StartedAt:       p.StartedAt,
		UpdatedAt:       p.UpdatedAt,
		CompletedAt:     p.CompletedAt,
	})
}
