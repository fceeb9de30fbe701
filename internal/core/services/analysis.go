package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

// FeatureBackfill receives tracks that were excluded from clustering for
// missing feature vectors, so a later run can include them.
type FeatureBackfill interface {
	Enqueue(userID int64, track domain.Track)
}

// Analyzer runs the library analysis pipeline as a background job per
// user: fetch saved tracks, resolve audio features, cluster, persist.
// Consumers poll the progress record; nothing is pushed.
type Analyzer struct {
	catalog  ports.CatalogProvider
	tracks   ports.TrackRepository
	clusters ports.ClusterRepository
	progress ports.ProgressRepository
	engine   *ClusterEngine
	backfill FeatureBackfill
	log      zerolog.Logger

	clusterCount int
	now          func() time.Time

	mu      sync.Mutex
	running map[int64]*runHandle
}

// runHandle identifies one analysis run so a finished run only clears its
// own map slot, never a successor's.
type runHandle struct {
	cancel context.CancelFunc
}

// NewAnalyzer constructs an Analyzer. backfill may be nil.
func NewAnalyzer(
	catalog ports.CatalogProvider,
	tracks ports.TrackRepository,
	clusters ports.ClusterRepository,
	progress ports.ProgressRepository,
	engine *ClusterEngine,
	backfill FeatureBackfill,
	clusterCount int,
	log zerolog.Logger,
) *Analyzer {
	if clusterCount <= 0 {
		clusterCount = DefaultClusterCount
	}
	return &Analyzer{
		catalog:      catalog,
		tracks:       tracks,
		clusters:     clusters,
		progress:     progress,
		engine:       engine,
		backfill:     backfill,
		log:          log,
		clusterCount: clusterCount,
		now:          time.Now,
	}
}

// Start kicks off an analysis run and returns immediately. Starting a new
// run while one is active supersedes it: the previous run's context is
// canceled and the progress record is reset for the new run.
func (a *Analyzer) Start(session domain.Session, trackLimit int) error {
	ctx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{cancel: cancel}

	a.mu.Lock()
	if a.running == nil {
		a.running = make(map[int64]*runHandle)
	}
	if prev, ok := a.running[session.UserID]; ok {
		prev.cancel()
		a.log.Info().Int64("user_id", session.UserID).Msg("superseding in-flight analysis")
	}
	a.running[session.UserID] = handle
	a.mu.Unlock()

	started := a.now()
	if err := a.progress.Upsert(context.Background(), domain.AnalysisProgress{
		UserID:    session.UserID,
		Status:    domain.StatusStarting,
		Step:      "Initializing analysis",
		StartedAt: started,
		UpdatedAt: started,
	}); err != nil {
		a.finish(session.UserID, handle)
		return fmt.Errorf("analyzer: start progress: %w", err)
	}

	go func() {
		defer a.finish(session.UserID, handle)
		a.run(ctx, session, trackLimit)
	}()

	return nil
}

// Progress returns the user's current progress record.
func (a *Analyzer) Progress(ctx context.Context, userID int64) (domain.AnalysisProgress, error) {
	return a.progress.ByUser(ctx, userID)
}

// finish removes the run's map slot unless a newer run replaced it.
func (a *Analyzer) finish(userID int64, handle *runHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if current, ok := a.running[userID]; ok && current == handle {
		delete(a.running, userID)
	}
	handle.cancel()
}

func (a *Analyzer) activeRuns() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.running)
}

func (a *Analyzer) run(ctx context.Context, session domain.Session, trackLimit int) {
	userID := session.UserID
	log := a.log.With().Int64("user_id", userID).Logger()

	fail := func(processed int, err error) {
		// A superseded run must not clobber the record owned by its
		// replacement.
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Debug().Msg("analysis superseded, discarding failure")
			return
		}
		log.Error().Err(err).Msg("analysis failed")
		now := a.now()
		_ = a.progress.Upsert(context.Background(), domain.AnalysisProgress{
			UserID:          userID,
			Status:          domain.StatusFailed,
			Step:            "Analysis failed",
			TracksProcessed: processed,
			ErrorMessage:    err.Error(),
			UpdatedAt:       now,
			CompletedAt:     &now,
		})
	}

	update := func(status domain.AnalysisStatus, step string, percent, processed, total int) bool {
		if ctx.Err() != nil {
			return false
		}
		err := a.progress.Upsert(ctx, domain.AnalysisProgress{
			UserID:          userID,
			Status:          status,
			Step:            step,
			Percent:         percent,
			TracksProcessed: processed,
			TotalTracks:     total,
			UpdatedAt:       a.now(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("progress update failed")
		}
		return true
	}

	if !update(domain.StatusFetchingTracks, "Fetching saved tracks", 5, 0, 0) {
		return
	}

	saved, err := a.catalog.FetchSavedTracks(ctx, session.AccessToken, trackLimit)
	if err != nil {
		fail(0, fmt.Errorf("fetch saved tracks: %w", err))
		return
	}
	total := len(saved)
	log.Info().Int("tracks", total).Msg("saved tracks fetched")

	if !update(domain.StatusGettingFeatures, "Resolving audio features", 40, 0, total) {
		return
	}

	ids := make([]string, 0, total)
	for _, t := range saved {
		ids = append(ids, t.SpotifyID)
	}
	features, err := a.catalog.FetchAudioFeatures(ctx, session.AccessToken, ids)
	if err != nil {
		fail(0, fmt.Errorf("fetch audio features: %w", err))
		return
	}
	for i := range saved {
		if f, ok := features[saved[i].SpotifyID]; ok {
			fv := f
			saved[i].Features = &fv
		}
	}

	if err := a.tracks.ReplaceLibrary(ctx, userID, saved); err != nil {
		fail(total, fmt.Errorf("store library: %w", err))
		return
	}

	if !update(domain.StatusClustering, "Clustering taste profile", 70, total, total) {
		return
	}

	result, err := a.engine.Analyze(saved, a.clusterCount)
	if err != nil {
		fail(total, fmt.Errorf("clustering: %w", err))
		return
	}
	if len(result.Excluded) > 0 {
		log.Warn().Int("excluded", len(result.Excluded)).Msg("tracks without feature vectors excluded from clustering")
	}

	// All-or-nothing swap: a failure leaves the previous cluster set intact.
	if err := a.clusters.ReplaceAll(ctx, userID, result.Clusters, result.Assignment); err != nil {
		fail(total, fmt.Errorf("store clusters: %w", err))
		return
	}

	if a.backfill != nil {
		for _, t := range result.Excluded {
			a.backfill.Enqueue(userID, t)
		}
	}

	if ctx.Err() != nil {
		return
	}
	now := a.now()
	analyzed := total - len(result.Excluded)
	err = a.progress.Upsert(context.Background(), domain.AnalysisProgress{
		UserID:          userID,
		Status:          domain.StatusCompleted,
		Step:            fmt.Sprintf("Analysis complete! %d tracks analyzed into %d clusters", analyzed, len(result.Clusters)),
		Percent:         100,
		TracksProcessed: total,
		TotalTracks:     total,
		UpdatedAt:       now,
		CompletedAt:     &now,
	})
	if err != nil {
		log.Warn().Err(err).Msg("completion update failed")
	}
	log.Info().Int("tracks", analyzed).Int("clusters", len(result.Clusters)).Msg("analysis completed")
}
