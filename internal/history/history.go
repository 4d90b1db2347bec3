package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History manages the pipeline run log in SQLite
type History struct {
	db *sql.DB
}

// NewHistory creates a new run-log tracker
func NewHistory(dbPath string) (*History, error) {
	// Open database connection
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for SQLite (single writer)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}

	// Initialize schema
	if err := h.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}

// initSchema creates the database tables and indexes
func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS pipeline_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command TEXT NOT NULL,
			status TEXT NOT NULL,
			records_total INTEGER NOT NULL,
			sprints INTEGER NOT NULL,
			hotfixes INTEGER NOT NULL,
			avg_delay_days REAL,
			data_changed INTEGER NOT NULL,
			dashboard_uid TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT,
			duration_seconds REAL,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Create index for efficient queries
	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_command_started
		ON pipeline_runs(command, started_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// RecordRun records a pipeline run in the log
func (h *History) RecordRun(ctx context.Context, record *RunRecord) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	startedAt := now
	if !record.StartedAt.IsZero() {
		startedAt = record.StartedAt.UTC().Format(time.RFC3339)
	}

	var completedAt *string
	if record.CompletedAt != nil {
		formatted := record.CompletedAt.UTC().Format(time.RFC3339)
		completedAt = &formatted
	} else {
		completedAt = &now
	}

	dataChanged := 0
	if record.DataChanged {
		dataChanged = 1
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs
		(command, status, records_total, sprints, hotfixes, avg_delay_days,
		 data_changed, dashboard_uid, started_at, completed_at,
		 duration_seconds, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.Command,
		record.Status,
		record.RecordsTotal,
		record.Sprints,
		record.Hotfixes,
		record.AvgDelayDays,
		dataChanged,
		record.DashboardUID,
		startedAt,
		completedAt,
		record.DurationSeconds,
		record.ErrorMessage,
	)

	if err != nil {
		return 0, fmt.Errorf("failed to insert run record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetLatestRun returns the most recent pipeline run
func (h *History) GetLatestRun(ctx context.Context) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, command, status, records_total, sprints, hotfixes,
		       avg_delay_days, data_changed, dashboard_uid, started_at,
		       completed_at, duration_seconds, error_message
		FROM pipeline_runs
		ORDER BY id DESC
		LIMIT 1
	`)

	record, err := scanRunRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}

	return record, nil
}

// GetRunHistory returns the most recent pipeline runs, newest first
func (h *History) GetRunHistory(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, command, status, records_total, sprints, hotfixes,
		       avg_delay_days, data_changed, dashboard_uid, started_at,
		       completed_at, duration_seconds, error_message
		FROM pipeline_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		record, err := scanRunRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run record: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// scanner is an interface that both *sql.Row and *sql.Rows implement
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRunRecord scans a database row into a RunRecord
// Works with both *sql.Row and *sql.Rows
func scanRunRecord(s scanner) (*RunRecord, error) {
	var record RunRecord
	var startedAtStr string
	var completedAtStr sql.NullString
	var dataChanged int

	err := s.Scan(
		&record.ID,
		&record.Command,
		&record.Status,
		&record.RecordsTotal,
		&record.Sprints,
		&record.Hotfixes,
		&record.AvgDelayDays,
		&dataChanged,
		&record.DashboardUID,
		&startedAtStr,
		&completedAtStr,
		&record.DurationSeconds,
		&record.ErrorMessage,
	)

	if err != nil {
		return nil, err
	}

	record.DataChanged = dataChanged != 0

	// Parse timestamps
	startedAt, err := time.Parse(time.RFC3339, startedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at timestamp: %w", err)
	}
	record.StartedAt = startedAt

	if completedAtStr.Valid {
		completedAt, err := time.Parse(time.RFC3339, completedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at timestamp: %w", err)
		}
		record.CompletedAt = &completedAt
	}

	return &record, nil
}
