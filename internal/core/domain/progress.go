package domain

import "time"

// AnalysisStatus is the state of a library analysis run.
type AnalysisStatus string

const (
	StatusStarting        AnalysisStatus = "starting"
	StatusFetchingTracks  AnalysisStatus = "fetching_tracks"
	StatusGettingFeatures AnalysisStatus = "getting_features"
	StatusClustering      AnalysisStatus = "clustering"
	StatusCompleted       AnalysisStatus = "completed"
	StatusFailed          AnalysisStatus = "failed"
)

// Terminal reports whether the run can make no further transitions.
func (s AnalysisStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether a run in this state is still in flight.
func (s AnalysisStatus) Active() bool {
	return !s.Terminal() && s != ""
}

// AnalysisProgress is the polled record for a long-running analysis run.
// Percent is monotonic non-decreasing while the run is non-terminal; a
// user has at most one active progress record at a time.
type AnalysisProgress struct {
	UserID          int64
	Status          AnalysisStatus
	Step            string
	Percent         int
	TracksProcessed int
	TotalTracks     int
	ErrorMessage    string
	StartedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}
