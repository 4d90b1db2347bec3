package history

import "time"

// RunRecord represents a single pipeline run in the database
type RunRecord struct {
	ID              int64
	Command         string // calculate, publish, dashboard, run
	Status          string // success, failed
	RecordsTotal    int
	Sprints         int
	Hotfixes        int
	AvgDelayDays    *float64 // nullable, absent when nothing was computed
	DataChanged     bool
	DashboardUID    *string // nullable
	StartedAt       time.Time
	CompletedAt     *time.Time // nullable
	DurationSeconds *float64   // nullable
	ErrorMessage    *string    // nullable
}
