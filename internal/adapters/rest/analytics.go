package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// AnalyticsOverview serves the top-level dashboard view.
func (h *Handler) AnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	_, user, err := h.currentUser(r)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	report, err := h.analytics.Overview(r.Context(), user)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// AnalyticsTasteEvolution serves the quarterly listening history view.
func (h *Handler) AnalyticsTasteEvolution(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session")
		return
	}

	evolution, err := h.analytics.TasteEvolution(r.Context(), sess.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"periods": evolution})
}

// AnalyticsClusterDetail serves one cluster's drill-down.
func (h *Handler) AnalyticsClusterDetail(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session")
		return
	}

	clusterID, err := strconv.Atoi(chi.URLParam(r, "clusterID"))
	if err != nil || clusterID < 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid cluster id")
		return
	}

	detail, err := h.analytics.ClusterDetail(r.Context(), sess.UserID, clusterID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"cluster":         detail.Cluster,
		"tracks":          detail.Tracks,
		"recommendations": toRecommendationResponses(detail.Recommendations),
	})
}

// AnalyticsRecommendationStats serves feedback aggregates.
func (h *Handler) AnalyticsRecommendationStats(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session")
		return
	}

	stats, err := h.analytics.Stats(r.Context(), sess.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// AnalyticsDistributions serves per-feature histograms.
func (h *Handler) AnalyticsDistributions(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "missing session")
		return
	}

	distributions, err := h.analytics.Distributions(r.Context(), sess.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"distributions": distributions})
}
