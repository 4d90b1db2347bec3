// Package pipeline sequences the deployment metrics stages:
// load -> compute -> save-if-changed -> publish -> backup -> synchronize ->
// verify. Stages run strictly in order; a fatal failure aborts the rest of
// the run, and every stage's effect is safe to redo from scratch on retry.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"deploytrack/internal/config"
	"deploytrack/internal/delay"
	"deploytrack/internal/grafana"
	"deploytrack/internal/history"
	"deploytrack/internal/publish"
	"deploytrack/internal/record"
)

// Pipeline runs the deployment metrics stages against one configuration.
type Pipeline struct {
	Config    *config.Config
	Publisher *publish.Publisher
	Grafana   *grafana.Client  // nil skips the dashboard sync and health probe
	History   *history.History // nil skips run recording
	Logger    *slog.Logger
}

// Result summarizes a pipeline run.
type Result struct {
	Stats     delay.Stats
	Changed   bool
	Published bool
	Dashboard *grafana.UpsertResult
	Warnings  []string
}

// New creates a pipeline. Grafana and History may be nil.
func New(cfg *config.Config, gc *grafana.Client, hist *history.History, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Config:    cfg,
		Publisher: publish.NewPublisher(ownerFromConfig(cfg), logger),
		Grafana:   gc,
		History:   hist,
		Logger:    logger,
	}
}

func ownerFromConfig(cfg *config.Config) *publish.Owner {
	if cfg.Owner == nil {
		return nil
	}
	return &publish.Owner{UID: cfg.Owner.UID, GID: cfg.Owner.GID}
}

// Calculate loads the data file, validates and recomputes the derived
// fields, and persists the store only when its content actually changed.
// Duplicate-name and early-deployment warnings are logged, never fatal.
func (p *Pipeline) Calculate() (*record.Store, delay.Stats, bool, []string, error) {
	store, err := record.Load(p.Config.DataFile)
	if err != nil {
		return nil, delay.Stats{}, false, nil, err
	}

	computed, stats, warnings, err := delay.Compute(store, p.Config.EarlyWarnDays)
	if err != nil {
		return nil, delay.Stats{}, false, warnings, err
	}

	merged, dupWarnings := record.Merge(store, computed)
	warnings = append(warnings, dupWarnings...)

	for _, w := range warnings {
		p.Logger.Warn(w)
	}

	changed, err := record.SaveIfChanged(merged, p.Config.DataFile)
	if err != nil {
		return nil, delay.Stats{}, false, warnings, err
	}

	p.Logger.Info("Delay calculation complete",
		"total", stats.Total,
		"sprints", stats.Sprints,
		"hotfixes", stats.Hotfixes,
		"computed", stats.Computed,
		"avg_delay_days", fmt.Sprintf("%.1f", stats.AvgDelay),
		"changed", changed)

	return merged, stats, changed, warnings, nil
}

// SyncDashboard builds the dashboard definition from the configured
// template and upserts it against the Grafana instance.
func (p *Pipeline) SyncDashboard(ctx context.Context) (*grafana.UpsertResult, error) {
	def, err := grafana.LoadDefinition(
		p.Config.Grafana.DashboardFile,
		p.Config.Grafana.Title,
		p.Config.Grafana.UID,
		p.Config.Grafana.DataURL,
	)
	if err != nil {
		return nil, err
	}

	return p.Grafana.Upsert(ctx, def)
}

// Verify re-reads the just-published artifact and asserts the record count
// matches what was written, then probes the Grafana health endpoint. The
// health probe failing is a warning only; the data and dashboard are
// already published, so it never reverses anything.
func (p *Pipeline) Verify(ctx context.Context, wantRecords int) error {
	published, err := record.Load(p.Config.TargetPath)
	if err != nil {
		return fmt.Errorf("verification failed to re-read published data: %w", err)
	}

	if got := len(published.Deployments); got != wantRecords {
		return fmt.Errorf("verification failed: published file has %d deployments, expected %d", got, wantRecords)
	}

	p.Logger.Info("Verified published data", "target", p.Config.TargetPath, "records", wantRecords)

	if p.Grafana != nil {
		if err := p.Grafana.Health(ctx); err != nil {
			p.Logger.Warn("Grafana health probe failed", "error", err)
		} else {
			p.Logger.Info("Grafana health probe ok")
		}
	}

	return nil
}

// Run executes the full sequential pipeline and records the run outcome
// in the history log when one is configured.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	result, err := p.run(ctx)

	p.recordRun(ctx, "run", started, result, err)

	return result, err
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	result := &Result{}

	// Step 1: load, compute, persist if changed
	store, stats, changed, warnings, err := p.Calculate()
	if err != nil {
		return result, err
	}
	result.Stats = stats
	result.Changed = changed
	result.Warnings = warnings

	// Step 2: publish the snapshot to the serving location
	if p.Config.TargetPath != "" {
		if err := p.Publisher.Publish(p.Config.DataFile, p.Config.TargetPath); err != nil {
			return result, err
		}
		result.Published = true

		// Step 3: rotate backups
		if p.Config.BackupDir != "" {
			if err := p.Publisher.Backup(p.Config.TargetPath, p.Config.BackupDir, p.Config.Retention); err != nil {
				return result, err
			}
		}
	}

	// Step 4: synchronize the dashboard. Always after the data publish, so
	// an observer never sees a dashboard pointing at stale content.
	if p.Grafana != nil {
		dashboard, err := p.SyncDashboard(ctx)
		if err != nil {
			return result, err
		}
		result.Dashboard = dashboard
	}

	// Step 5: verify what was published
	if result.Published {
		if err := p.Verify(ctx, len(store.Deployments)); err != nil {
			return result, err
		}
	}

	return result, nil
}

// recordRun writes the run outcome to the history log. Logging the run is
// best effort; a history failure never fails the pipeline.
func (p *Pipeline) recordRun(ctx context.Context, command string, started time.Time, result *Result, runErr error) {
	if p.History == nil {
		return
	}

	duration := time.Since(started).Seconds()
	status := "success"

	runRecord := &history.RunRecord{
		Command:         command,
		Status:          status,
		StartedAt:       started,
		DurationSeconds: &duration,
	}

	if runErr != nil {
		runRecord.Status = "failed"
		msg := runErr.Error()
		runRecord.ErrorMessage = &msg
	}

	if result != nil {
		runRecord.RecordsTotal = result.Stats.Total
		runRecord.Sprints = result.Stats.Sprints
		runRecord.Hotfixes = result.Stats.Hotfixes
		runRecord.DataChanged = result.Changed
		if result.Stats.Computed > 0 {
			avg := result.Stats.AvgDelay
			runRecord.AvgDelayDays = &avg
		}
		if result.Dashboard != nil {
			uid := result.Dashboard.UID
			runRecord.DashboardUID = &uid
		}
	}

	if _, err := p.History.RecordRun(ctx, runRecord); err != nil {
		p.Logger.Error("Failed to record run in history", "error", err)
	}
}
