package main

import (
	"context"
	"fmt"
	"strings"

	"deploytrack/internal/grafana"
	"deploytrack/internal/history"
	"deploytrack/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	runConfigFile string
	runDBPath     string
	runSkipSync   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full deployment metrics pipeline",
	Long: `Run every pipeline stage in order: calculate delays, persist the data file
if it changed, publish the snapshot to the serving location, rotate backups,
synchronize the Grafana dashboard, and verify the published artifact.

A fatal failure in any stage aborts the remaining stages; each stage is safe
to redo from scratch on the next run.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigFile, "config", "c", getEnvOrDefault("DEPLOYTRACK_CONFIG_FILE", ""), "Path to deploytrack.yaml configuration file")
	runCmd.Flags().StringVar(&runDBPath, "db", getEnvOrDefault("DEPLOYTRACK_DB_PATH", ""), "Path to SQLite run-history database (empty disables history)")
	runCmd.Flags().BoolVar(&runSkipSync, "skip-dashboard", false, "Skip the dashboard synchronization stage")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadPipelineConfig(runConfigFile)
	if err != nil {
		return err
	}

	logger := newCommandLogger()

	var client *grafana.Client
	if !runSkipSync {
		if errs := cfg.ValidateGrafana(); len(errs) > 0 {
			return fmt.Errorf("dashboard synchronization is not configured (use --skip-dashboard to run without it):\n%s", strings.Join(errs, "\n"))
		}
		client, err = grafana.NewClient(cfg.Grafana.URL, cfg.Grafana.APIKey, logger)
		if err != nil {
			return err
		}
	}

	var hist *history.History
	if runDBPath != "" {
		hist, err = history.NewHistory(runDBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize run history: %w", err)
		}
		defer hist.Close()
	}

	p := pipeline.New(cfg, client, hist, logger)

	result, err := p.Run(context.Background())
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	fmt.Printf("Pipeline completed successfully\n")
	fmt.Printf("  Deployments:   %d (%d sprints, %d hotfixes)\n", result.Stats.Total, result.Stats.Sprints, result.Stats.Hotfixes)
	fmt.Printf("  Average delay: %.1f days\n", result.Stats.AvgDelay)
	fmt.Printf("  Data changed:  %t\n", result.Changed)
	fmt.Printf("  Published:     %t\n", result.Published)
	if result.Dashboard != nil {
		fmt.Printf("  Dashboard:     %s (version %d)\n", result.Dashboard.UID, result.Dashboard.Version)
	}

	return nil
}
