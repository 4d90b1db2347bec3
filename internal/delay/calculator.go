// Package delay derives delay metrics for deployment records.
//
// Compute is a pure function: no I/O, no hidden state. Applying it twice
// to the same store yields the same output as applying it once, which is
// what lets the pipeline persist only when something actually changed.
package delay

import (
	"fmt"
	"time"

	"deploytrack/internal/record"
)

// Stats summarizes one calculation pass over the store.
type Stats struct {
	Total      int
	Sprints    int
	Hotfixes   int
	Computed   int
	TotalDelay int
	AvgDelay   float64
}

// Compute returns a new store in which every record with an actual
// deployment date carries DelayDays and OnTime; records without one have
// both derived fields cleared.
//
// DelayDays is the whole-day difference between the UTC date components of
// the actual and planned dates (time of day is ignored). Positive means
// late, negative early, zero on time. OnTime is DelayDays <= 0.
//
// Validation failures (bad kind, empty name, unparseable planned date)
// accumulate across the whole batch and fail it as one ValidationError;
// no record is silently dropped. An actual date earlier than planned by
// more than earlyWarnDays produces a warning, not an error.
func Compute(store *record.Store, earlyWarnDays int) (*record.Store, Stats, []string, error) {
	var (
		stats    Stats
		warnings []string
		problems []string
	)

	out := &record.Store{
		Deployments: make([]record.Record, len(store.Deployments)),
		LastUpdated: store.LastUpdated,
	}
	copy(out.Deployments, store.Deployments)

	for i := range out.Deployments {
		rec := &out.Deployments[i]
		stats.Total++

		if rec.Name == "" {
			problems = append(problems, fmt.Sprintf("  - record %d: missing required 'Name' field", i))
			continue
		}

		if !rec.KindValid() {
			problems = append(problems, fmt.Sprintf("  - %s: invalid Type %q (must be %q or %q)",
				rec.Name, rec.Kind, record.KindSprint, record.KindHotfix))
			continue
		}

		switch {
		case rec.IsSprint():
			stats.Sprints++
		case rec.IsHotfix():
			stats.Hotfixes++
		}

		planned, err := rec.PlannedTime()
		if err != nil {
			problems = append(problems, fmt.Sprintf("  - %s: %v", rec.Name, err))
			continue
		}

		if !rec.Deployed() {
			// Not yet deployed: derived fields stay absent.
			rec.DelayDays = nil
			rec.OnTime = nil
			continue
		}

		actual, err := rec.ActualTime()
		if err != nil {
			problems = append(problems, fmt.Sprintf("  - %s: %v", rec.Name, err))
			continue
		}

		days := daysBetween(planned, actual)
		onTime := days <= 0

		if earlyWarnDays > 0 && days < -earlyWarnDays {
			warnings = append(warnings, fmt.Sprintf("%s: deployed %d days before the planned date, check the record", rec.Name, -days))
		}

		rec.DelayDays = &days
		rec.OnTime = &onTime

		stats.Computed++
		stats.TotalDelay += days
	}

	if len(problems) > 0 {
		return nil, Stats{}, warnings, &record.ValidationError{Problems: problems}
	}

	if stats.Computed > 0 {
		stats.AvgDelay = float64(stats.TotalDelay) / float64(stats.Computed)
	}

	return out, stats, warnings, nil
}

// daysBetween computes the calendar-day difference between two timestamps.
// Both are normalized to UTC and truncated to their date components before
// subtraction, so the time of day never shifts the count.
func daysBetween(planned, actual time.Time) int {
	p := planned.UTC()
	a := actual.UTC()

	pd := time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, time.UTC)
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)

	return int(ad.Sub(pd).Hours() / 24)
}
