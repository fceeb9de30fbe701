package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rewindfm/rewind/internal/core/domain"
)

const (
	defaultGenerateLimit = 20
	maxGenerateLimit     = 50
)

type recommendationResponse struct {
	ID             int64      `json:"id"`
	SpotifyTrackID string     `json:"spotify_track_id"`
	TrackName      string     `json:"track_name"`
	ArtistName     string     `json:"artist_name"`
	AlbumName      string     `json:"album_name,omitempty"`
	PreviewURL     string     `json:"preview_url,omitempty"`
	ExternalURL    string     `json:"external_url,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	Type           string     `json:"type"`
	SourceCluster  *int       `json:"source_cluster_id,omitempty"`
	Confidence     float64    `json:"confidence"`
	Liked          *bool      `json:"liked,omitempty"`
	AlreadyKnew    *bool      `json:"already_knew,omitempty"`
	FeedbackAt     *time.Time `json:"feedback_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toRecommendationResponse(r domain.Recommendation) recommendationResponse {
	return recommendationResponse{
		ID:             r.ID,
		SpotifyTrackID: r.SpotifyTrackID,
		TrackName:      r.TrackName,
		ArtistName:     r.ArtistName,
		AlbumName:      r.AlbumName,
		PreviewURL:     r.PreviewURL,
		ExternalURL:    r.ExternalURL,
		ImageURL:       r.ImageURL,
		Type:           string(r.Type),
		SourceCluster:  r.SourceClusterID,
		Confidence:     r.Confidence,
		Liked:          r.Liked,
		AlreadyKnew:    r.AlreadyKnew,
		FeedbackAt:     r.FeedbackAt,
		CreatedAt:      r.CreatedAt,
	}
}

func toRecommendationResponses(recs []domain.Recommendation) []recommendationResponse {
	out := make([]recommendationResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, toRecommendationResponse(r))
	}
	return out
}

type generateResponse struct {
	Type            string                   `json:"type"`
	Recommendations []recommendationResponse `json:"recommendations"`
}

// GenerateRecommendations runs one of the two pipelines, gated by the
// per-user rate limiter.
func (h *Handler) GenerateRecommendations(w http.ResponseWriter, r *http.Request) {
	sess, user, err := h.currentUser(r)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	recType := domain.RecommendationType(r.URL.Query().Get("type"))
	if recType == "" {
		recType = domain.RecommendationCluster
	}
	if !recType.Valid() {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "type must be cluster or nostalgia")
		return
	}
	limit := queryInt(r, "limit", defaultGenerateLimit)
	if limit <= 0 || limit > maxGenerateLimit {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be between 1 and 50")
		return
	}

	allowed, err := h.limiter.MayGenerate(r.Context(), sess.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if !allowed {
		h.respondServiceError(w, domain.ErrRateLimited)
		return
	}

	var recs []domain.Recommendation
	switch recType {
	case domain.RecommendationNostalgia:
		recs, err = h.nostalgia.Generate(r.Context(), sess, user, limit)
	default:
		recs, err = h.recommender.Generate(r.Context(), sess, limit)
	}
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	if err := h.limiter.RecordGeneration(r.Context(), sess.UserID); err != nil {
		h.log.Warn().Err(err).Int64("user_id", sess.UserID).Msg("recording generation failed")
	}

	respondJSON(w, http.StatusOK, generateResponse{
		Type:            string(recType),
		Recommendations: toRecommendationResponses(recs),
	})
}

type historyResponse struct {
	Recommendations []recommendationResponse `json:"recommendations"`
	Limit           int                      `json:"limit"`
	Offset          int                      `json:"offset"`
}

// RecommendationHistory pages through past recommendations, newest first.
func (h *Handler) RecommendationHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	if limit <= 0 || limit > 200 || offset < 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid limit or offset")
		return
	}

	recs, err := h.recs.ByUser(r.Context(), sess.UserID, limit, offset)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, historyResponse{
		Recommendations: toRecommendationResponses(recs),
		Limit:           limit,
		Offset:          offset,
	})
}

type feedbackRequest struct {
	Liked       *bool `json:"liked"`
	AlreadyKnew *bool `json:"already_knew"`
}

// RecommendationFeedback records the user's reaction. Liking a track also
// saves it into the user's library.
func (h *Handler) RecommendationFeedback(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid recommendation id")
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.Liked == nil && req.AlreadyKnew == nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "at least one of liked or already_knew is required")
		return
	}

	updated, err := h.recs.ApplyFeedback(r.Context(), sess.UserID, id,
		domain.Feedback{Liked: req.Liked, AlreadyKnew: req.AlreadyKnew}, time.Now())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	if req.Liked != nil && *req.Liked {
		if err := h.catalog.AddToLibrary(r.Context(), sess.AccessToken, []string{updated.SpotifyTrackID}); err != nil {
			h.log.Warn().Err(err).Str("track", updated.SpotifyTrackID).Msg("saving liked track to library failed")
		}
	}

	respondJSON(w, http.StatusOK, toRecommendationResponse(updated))
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
