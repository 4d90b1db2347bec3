package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	hist, err := NewHistory(dbPath)
	if err != nil {
		t.Fatalf("Failed to create history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	return hist
}

func TestHistory_RecordRun(t *testing.T) {
	hist := newTestHistory(t)

	duration := 5.5
	avgDelay := 1.25
	uid := "deployment-metrics"
	run := &RunRecord{
		Command:         "run",
		Status:          "success",
		RecordsTotal:    12,
		Sprints:         9,
		Hotfixes:        3,
		AvgDelayDays:    &avgDelay,
		DataChanged:     true,
		DashboardUID:    &uid,
		StartedAt:       time.Now().UTC(),
		DurationSeconds: &duration,
	}

	id, err := hist.RecordRun(context.Background(), run)
	if err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}

	if id == 0 {
		t.Error("Expected non-zero run ID")
	}
}

func TestHistory_GetLatestRun(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	duration1 := 1.0
	_, err := hist.RecordRun(ctx, &RunRecord{
		Command:         "calculate",
		Status:          "success",
		RecordsTotal:    3,
		DurationSeconds: &duration1,
	})
	if err != nil {
		t.Fatalf("Failed to record first run: %v", err)
	}

	// Small delay to ensure different timestamp
	time.Sleep(10 * time.Millisecond)

	duration2 := 2.0
	errMsg := "grafana unreachable after 3 attempts"
	_, err = hist.RecordRun(ctx, &RunRecord{
		Command:         "run",
		Status:          "failed",
		RecordsTotal:    3,
		DurationSeconds: &duration2,
		ErrorMessage:    &errMsg,
	})
	if err != nil {
		t.Fatalf("Failed to record second run: %v", err)
	}

	latest, err := hist.GetLatestRun(ctx)
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}

	if latest == nil {
		t.Fatal("Expected latest run to be non-nil")
	}

	if latest.Status != "failed" {
		t.Errorf("Expected latest status 'failed', got %q", latest.Status)
	}

	if latest.ErrorMessage == nil {
		t.Error("Expected error message to be non-nil")
	} else if *latest.ErrorMessage != errMsg {
		t.Errorf("Expected error message %q, got %q", errMsg, *latest.ErrorMessage)
	}

	if latest.DurationSeconds == nil {
		t.Error("Expected duration to be non-nil")
	} else if *latest.DurationSeconds != 2.0 {
		t.Errorf("Expected duration 2.0, got %f", *latest.DurationSeconds)
	}
}

func TestHistory_GetLatestRun_NoRecords(t *testing.T) {
	hist := newTestHistory(t)

	latest, err := hist.GetLatestRun(context.Background())
	if err != nil {
		t.Fatalf("Expected no error on empty log, got: %v", err)
	}

	if latest != nil {
		t.Errorf("Expected nil on empty log, got: %v", latest)
	}
}

func TestHistory_GetRunHistory(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		duration := float64(i)
		_, err := hist.RecordRun(ctx, &RunRecord{
			Command:         "run",
			Status:          "success",
			RecordsTotal:    i,
			DurationSeconds: &duration,
		})
		if err != nil {
			t.Fatalf("Failed to record run %d: %v", i, err)
		}
		// Small delay to ensure different timestamps
		time.Sleep(5 * time.Millisecond)
	}

	runs, err := hist.GetRunHistory(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to get run history: %v", err)
	}

	if len(runs) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(runs))
	}

	// Most recent first
	if runs[0].RecordsTotal != 4 {
		t.Errorf("Expected newest run first (RecordsTotal 4), got %d", runs[0].RecordsTotal)
	}
}

func TestHistory_NullableFieldsRoundTrip(t *testing.T) {
	hist := newTestHistory(t)
	ctx := context.Background()

	// A calculate-only run: nothing computed, no dashboard, no error.
	_, err := hist.RecordRun(ctx, &RunRecord{
		Command:      "calculate",
		Status:       "success",
		RecordsTotal: 0,
	})
	if err != nil {
		t.Fatalf("Failed to record run: %v", err)
	}

	latest, err := hist.GetLatestRun(ctx)
	if err != nil {
		t.Fatalf("Failed to get latest run: %v", err)
	}

	if latest.AvgDelayDays != nil {
		t.Errorf("Expected nil AvgDelayDays, got %f", *latest.AvgDelayDays)
	}
	if latest.DashboardUID != nil {
		t.Errorf("Expected nil DashboardUID, got %q", *latest.DashboardUID)
	}
	if latest.ErrorMessage != nil {
		t.Errorf("Expected nil ErrorMessage, got %q", *latest.ErrorMessage)
	}
	if latest.DataChanged {
		t.Error("Expected DataChanged false")
	}
	if latest.StartedAt.IsZero() {
		t.Error("Expected StartedAt to be populated")
	}
	if latest.CompletedAt == nil {
		t.Error("Expected CompletedAt to default to the insert time")
	}
}
