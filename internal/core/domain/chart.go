package domain

import "time"

// ChartEntry is one row scraped from a historical weekly chart. Title and
// artist are free text and not yet resolved against the catalog.
type ChartEntry struct {
	Year      int
	ChartDate time.Time
	Rank      int
	Title     string
	Artist    string
}
