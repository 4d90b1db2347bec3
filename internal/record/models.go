package record

import (
	"fmt"
	"strings"
	"time"
)

// Deployment kinds accepted in the data file.
const (
	KindSprint = "Sprint"
	KindHotfix = "Hotfix"
)

// Record represents a single deployment event in the data file.
//
// Dates are kept as the raw strings from the file so that saving an
// unchanged store reproduces the input byte for byte. Parsing happens
// on demand via PlannedTime/ActualTime.
//
// DelayDays and OnTime are derived fields. They are never edited by hand;
// the delay calculator owns them.
type Record struct {
	Kind        string `json:"Type"`
	Name        string `json:"Name"`
	PlannedDate string `json:"PlannedDeploymentDate"`
	ActualDate  string `json:"DeploymentDate,omitempty"`
	Description string `json:"Description,omitempty"`
	DelayDays   *int   `json:"DelayDays,omitempty"`
	OnTime      *bool  `json:"OnTime,omitempty"`
}

// Store is the ordered collection of deployment records.
// Insertion order is preserved; it drives the timeline visualization.
type Store struct {
	Deployments []Record `json:"deployments"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
}

// KindValid reports whether the record's kind is one of the allowed values.
// The comparison is case-insensitive to match the data file's history of
// hand-edited entries.
func (r *Record) KindValid() bool {
	switch strings.ToLower(r.Kind) {
	case strings.ToLower(KindSprint), strings.ToLower(KindHotfix):
		return true
	}
	return false
}

// IsSprint reports whether the record is a sprint release.
func (r *Record) IsSprint() bool {
	return strings.EqualFold(r.Kind, KindSprint)
}

// IsHotfix reports whether the record is a hotfix.
func (r *Record) IsHotfix() bool {
	return strings.EqualFold(r.Kind, KindHotfix)
}

// Deployed reports whether the record has an actual deployment date.
func (r *Record) Deployed() bool {
	return r.ActualDate != ""
}

// PlannedTime parses the planned deployment date.
func (r *Record) PlannedTime() (time.Time, error) {
	t, err := parseTimestamp(r.PlannedDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid PlannedDeploymentDate %q: %w", r.PlannedDate, err)
	}
	return t, nil
}

// ActualTime parses the actual deployment date.
// Must only be called when Deployed() is true.
func (r *Record) ActualTime() (time.Time, error) {
	t, err := parseTimestamp(r.ActualDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid DeploymentDate %q: %w", r.ActualDate, err)
	}
	return t, nil
}

// parseTimestamp accepts the ISO-8601 forms found in the data file:
// full RFC 3339 timestamps and bare dates.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
