package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/services"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// respondServiceError maps core errors to status codes; anything
// unrecognized is a 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	case errors.Is(err, services.ErrNoAnalysis):
		respondError(w, http.StatusBadRequest, "ANALYSIS_REQUIRED", "run a library analysis first")
	case errors.Is(err, services.ErrDateOfBirthRequired):
		respondError(w, http.StatusBadRequest, "DATE_OF_BIRTH_REQUIRED", "complete onboarding with your date of birth first")
	case errors.Is(err, domain.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "generation limit reached, try again later")
	default:
		h.log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
