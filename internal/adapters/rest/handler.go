package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
	"github.com/rewindfm/rewind/internal/core/services"
)

// Authenticator drives the catalog service's authorization-code flow.
type Authenticator interface {
	BeginLogin(state string) (authorizeURL, verifier string)
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// ProfileProvider resolves an access token to the catalog account behind it.
type ProfileProvider interface {
	CurrentUser(ctx context.Context, accessToken string) (domain.User, error)
}

// Config tunes the HTTP surface.
type Config struct {
	// RequestsPerMinute caps per-IP traffic on the API group.
	RequestsPerMinute int
}

// Handler is the HTTP adapter over the core services.
type Handler struct {
	auth    Authenticator
	profile ProfileProvider
	catalog ports.CatalogProvider

	users    ports.UserRepository
	sessions ports.SessionRepository
	tracks   ports.TrackRepository
	recs     ports.RecommendationRepository

	analyzer    *services.Analyzer
	recommender *services.Recommender
	nostalgia   *services.Nostalgia
	limiter     *services.RateLimiter
	analytics   *services.Analytics

	states *stateStore
	cfg    Config
	log    zerolog.Logger
}

// NewHandler wires the HTTP adapter.
func NewHandler(
	auth Authenticator,
	profile ProfileProvider,
	catalog ports.CatalogProvider,
	users ports.UserRepository,
	sessions ports.SessionRepository,
	tracks ports.TrackRepository,
	recs ports.RecommendationRepository,
	analyzer *services.Analyzer,
	recommender *services.Recommender,
	nostalgia *services.Nostalgia,
	limiter *services.RateLimiter,
	analytics *services.Analytics,
	cfg Config,
	log zerolog.Logger,
) *Handler {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}
	return &Handler{
		auth:        auth,
		profile:     profile,
		catalog:     catalog,
		users:       users,
		sessions:    sessions,
		tracks:      tracks,
		recs:        recs,
		analyzer:    analyzer,
		recommender: recommender,
		nostalgia:   nostalgia,
		limiter:     limiter,
		analytics:   analytics,
		states:      newStateStore(10 * time.Minute),
		cfg:         cfg,
		log:         log,
	}
}

// Router builds the chi route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(h.cfg.RequestsPerMinute, time.Minute))

		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", h.Login)
			r.Get("/callback", h.Callback)
			r.With(h.requireSession).Post("/onboarding", h.Onboarding)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)

			r.Get("/me/status", h.Status)

			r.Post("/analysis", h.StartAnalysis)
			r.Get("/analysis/progress", h.AnalysisProgress)

			r.Route("/recommendations", func(r chi.Router) {
				r.Get("/generate", h.GenerateRecommendations)
				r.Get("/history", h.RecommendationHistory)
				r.Post("/{id}/feedback", h.RecommendationFeedback)
			})

			r.Route("/analytics", func(r chi.Router) {
				r.Get("/overview", h.AnalyticsOverview)
				r.Get("/taste-evolution", h.AnalyticsTasteEvolution)
				r.Get("/clusters/{clusterID}", h.AnalyticsClusterDetail)
				r.Get("/recommendations-stats", h.AnalyticsRecommendationStats)
				r.Get("/audio-features", h.AnalyticsDistributions)
			})
		})
	})

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
