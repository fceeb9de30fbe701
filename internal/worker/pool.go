// Package worker provides background feature backfill for tracks the
// catalog returned no audio features for.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rewindfm/rewind/internal/core/domain"
	"github.com/rewindfm/rewind/internal/core/ports"
)

const jobTimeout = 30 * time.Second

type job struct {
	userID int64
	track  domain.Track
}

// Pool consumes backfill jobs: it downloads the track's 30-second preview,
// estimates a partial feature vector from the audio and stores it so the
// next analysis run can include the track.
type Pool struct {
	tracks  ports.TrackRepository
	log     zerolog.Logger
	jobs    chan job
	wg      sync.WaitGroup
	analyze func(ctx context.Context, url string) (float64, error)

	mu      sync.Mutex
	stopped bool
}

// NewPool creates a pool with the given queue size. Call Start before
// enqueuing.
func NewPool(tracks ports.TrackRepository, queueSize int, log zerolog.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		tracks:  tracks,
		log:     log,
		jobs:    make(chan job, queueSize),
		analyze: analyzePreview,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				p.process(j)
			}
		}()
	}
}

// Stop closes the queue and waits for in-flight jobs to finish. Further
// Enqueue calls are dropped; analysis runs may still be in flight when the
// process shuts down.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

// Enqueue submits a track without blocking; a full queue or a stopped pool
// drops the job.
func (p *Pool) Enqueue(userID int64, track domain.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		p.log.Warn().Str("track", track.SpotifyID).Msg("pool stopped, dropping backfill job")
		return
	}
	select {
	case p.jobs <- job{userID: userID, track: track}:
	default:
		p.log.Warn().Str("track", track.SpotifyID).Msg("backfill queue full, dropping job")
	}
}

func (p *Pool) process(j job) {
	log := p.log.With().Int64("user_id", j.userID).Str("track", j.track.SpotifyID).Logger()

	if j.track.PreviewURL == "" {
		log.Debug().Msg("no preview url, skipping backfill")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	energy, err := p.analyze(ctx, j.track.PreviewURL)
	if err != nil {
		log.Warn().Err(err).Msg("preview analysis failed")
		return
	}

	features := estimateFeatures(energy)
	if err := p.tracks.UpdateTrackFeatures(ctx, j.userID, j.track.SpotifyID, features); err != nil {
		log.Warn().Err(err).Msg("storing backfilled features failed")
		return
	}
	log.Info().Float64("energy", energy).Msg("features backfilled from preview")
}
