package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rewindfm/rewind/internal/core/ports"
)

// RateLimitPolicy configures the recommendation generation gate.
type RateLimitPolicy struct {
	Cooldown  time.Duration
	MaxPerDay int
}

// DefaultRateLimitPolicy matches the deployed defaults: four generations
// per rolling day, four hours apart.
func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{Cooldown: 4 * time.Hour, MaxPerDay: 4}
}

// RateLimiter gates recommendation generation per user. A generation is
// blocked when the rolling 24-hour cap is reached, regardless of cooldown,
// or when the cooldown since the last generation has not elapsed.
type RateLimiter struct {
	sessions ports.SessionRepository
	policy   RateLimitPolicy
	now      func() time.Time
}

// NewRateLimiter constructs a RateLimiter.
func NewRateLimiter(sessions ports.SessionRepository, policy RateLimitPolicy) *RateLimiter {
	if policy.Cooldown <= 0 {
		policy.Cooldown = DefaultRateLimitPolicy().Cooldown
	}
	if policy.MaxPerDay <= 0 {
		policy.MaxPerDay = DefaultRateLimitPolicy().MaxPerDay
	}
	return &RateLimiter{sessions: sessions, policy: policy, now: time.Now}
}

// MayGenerate reports whether the user is currently allowed to generate
// recommendations.
func (l *RateLimiter) MayGenerate(ctx context.Context, userID int64) (bool, error) {
	now := l.now()

	recent, err := l.sessions.GenerationsSince(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return false, fmt.Errorf("rate limiter: generation history: %w", err)
	}
	last, hasLast, err := l.sessions.LastGeneration(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("rate limiter: last generation: %w", err)
	}

	return allowGeneration(l.policy, now, len(recent), last, hasLast), nil
}

// RecordGeneration logs a successful generation for future gating.
func (l *RateLimiter) RecordGeneration(ctx context.Context, userID int64) error {
	if err := l.sessions.RecordGeneration(ctx, userID, l.now()); err != nil {
		return fmt.Errorf("rate limiter: record generation: %w", err)
	}
	return nil
}

// allowGeneration is the pure policy decision. The daily cap wins over the
// cooldown: four generations within a rolling day block a fifth even when
// the cooldown since the fourth has elapsed.
func allowGeneration(policy RateLimitPolicy, now time.Time, recentCount int, last time.Time, hasLast bool) bool {
	if recentCount >= policy.MaxPerDay {
		return false
	}
	if hasLast && now.Sub(last) < policy.Cooldown {
		return false
	}
	return true
}
