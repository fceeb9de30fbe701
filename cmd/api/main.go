package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewindfm/rewind/internal/adapters/billboard"
	"github.com/rewindfm/rewind/internal/adapters/rest"
	"github.com/rewindfm/rewind/internal/adapters/spotify"
	"github.com/rewindfm/rewind/internal/adapters/sqlite"
	"github.com/rewindfm/rewind/internal/config"
	"github.com/rewindfm/rewind/internal/core/services"
	"github.com/rewindfm/rewind/internal/logging"
	"github.com/rewindfm/rewind/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rewind: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	if cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "" {
		log.Fatal().Msg("REWIND_SPOTIFY_CLIENT_ID and REWIND_SPOTIFY_CLIENT_SECRET are required")
	}

	// Driven adapters.
	db, err := sqlite.NewAdapter(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("opening database failed")
	}
	defer db.Close()

	catalog := spotify.NewClient(&http.Client{}, cfg.Spotify.BaseURL, logging.Component(log, "spotify"))
	authenticator := spotify.NewAuthenticator(
		cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RedirectURL,
		cfg.Spotify.AuthURL, cfg.Spotify.TokenURL)

	scraper := billboard.NewScraper(&http.Client{}, cfg.Billboard.BaseURL, logging.Component(log, "billboard"))
	charts := billboard.NewCachedProvider(scraper, db.ChartCache(), cfg.Billboard.CacheTTL, logging.Component(log, "chartcache"))

	// Background feature backfill.
	pool := worker.NewPool(db.Tracks(), cfg.Worker.QueueSize, logging.Component(log, "backfill"))
	pool.Start(cfg.Worker.Workers)
	defer pool.Stop()

	// Core services.
	engine := services.NewClusterEngine()
	analyzer := services.NewAnalyzer(catalog, db.Tracks(), db.Clusters(), db.Progress(), engine,
		pool, cfg.Analysis.ClusterCount, logging.Component(log, "analyzer"))
	recommender := services.NewRecommender(catalog, db.Tracks(), db.Clusters(), db.Recommendations(),
		logging.Component(log, "recommender"))
	nostalgia := services.NewNostalgia(catalog, charts, db.Tracks(), db.Clusters(), db.Recommendations(),
		logging.Component(log, "nostalgia"))
	limiter := services.NewRateLimiter(db.Sessions(), services.RateLimitPolicy{
		Cooldown:  cfg.RateLimit.Cooldown,
		MaxPerDay: cfg.RateLimit.MaxPerDay,
	})
	analytics := services.NewAnalytics(db.Tracks(), db.Clusters(), db.Recommendations())

	// Driving adapter.
	handler := rest.NewHandler(authenticator, catalog, catalog,
		db.Users(), db.Sessions(), db.Tracks(), db.Recommendations(),
		analyzer, recommender, nostalgia, limiter, analytics,
		rest.Config{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute},
		logging.Component(log, "rest"))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("rewind api listening")
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown error")
		}
	}
}
