package domain

import "time"

// AnalysisRecord is the history entry written for every successful analysis.
type AnalysisRecord struct {
	ID         string
	FEN        string
	Engine     string
	SideToMove string
	Pieces     int
	Pinned     int
	Hanging    int
	Cached     bool
	Duration   time.Duration
	CreatedAt  time.Time
}
