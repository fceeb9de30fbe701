package services

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_MayGenerate(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	policy := RateLimitPolicy{Cooldown: 4 * time.Hour, MaxPerDay: 4}

	tests := []struct {
		name        string
		generations []time.Time
		now         time.Time
		want        bool
	}{
		{
			name:        "no prior generation is allowed",
			generations: nil,
			now:         base,
			want:        true,
		},
		{
			name:        "cooldown not elapsed blocks",
			generations: []time.Time{base},
			now:         base.Add(1 * time.Hour),
			want:        false,
		},
		{
			name:        "cooldown elapsed allows",
			generations: []time.Time{base},
			now:         base.Add(4 * time.Hour),
			want:        true,
		},
		{
			name: "daily cap blocks even after cooldown",
			generations: []time.Time{
				base,
				base.Add(4 * time.Hour),
				base.Add(8 * time.Hour),
				base.Add(12 * time.Hour),
			},
			now:  base.Add(16*time.Hour + 5*time.Minute),
			want: false,
		},
		{
			name: "cap frees up once the window rolls past the oldest",
			generations: []time.Time{
				base,
				base.Add(4 * time.Hour),
				base.Add(8 * time.Hour),
				base.Add(12 * time.Hour),
			},
			now:  base.Add(25 * time.Hour),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := newMockSessionRepo()
			for _, at := range tt.generations {
				if err := sessions.RecordGeneration(context.Background(), 1, at); err != nil {
					t.Fatalf("record generation: %v", err)
				}
			}

			limiter := NewRateLimiter(sessions, policy)
			limiter.now = func() time.Time { return tt.now }

			got, err := limiter.MayGenerate(context.Background(), 1)
			if err != nil {
				t.Fatalf("MayGenerate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("MayGenerate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRateLimiter_RecordGeneration(t *testing.T) {
	sessions := newMockSessionRepo()
	limiter := NewRateLimiter(sessions, DefaultRateLimitPolicy())

	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if err := limiter.RecordGeneration(context.Background(), 7); err != nil {
		t.Fatalf("RecordGeneration() error = %v", err)
	}

	last, ok, err := sessions.LastGeneration(context.Background(), 7)
	if err != nil || !ok {
		t.Fatalf("LastGeneration() = %v, %v, %v", last, ok, err)
	}
	if !last.Equal(now) {
		t.Errorf("recorded generation at %v, want %v", last, now)
	}
}
