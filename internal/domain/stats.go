package domain

import "time"

// DispatchStats holds statistics about a discovery run.
type DispatchStats struct {
	Total     int
	New       int
	Published int
	Errors    int
	Duration  time.Duration
}

// ProcessStats holds counters for the processing stage.
type ProcessStats struct {
	Received  int
	Processed int
	Rejected  int
	Failed    int
}
