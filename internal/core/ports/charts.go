package ports

import (
	"context"

	"github.com/rewindfm/rewind/internal/core/domain"
)

// ChartProvider supplies historical weekly chart entries for a calendar
// year. Implementations cache with a TTL and may serve stale data when a
// refresh fails.
type ChartProvider interface {
	FetchChart(ctx context.Context, year int) ([]domain.ChartEntry, error)
}
