package main

import (
	"context"
	"fmt"
	"strings"

	"deploytrack/internal/grafana"
	"deploytrack/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	dashboardConfigFile string
	dashboardFile       string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Deploy the Grafana dashboard",
	Long: `Upsert the deployment dashboard against the Grafana instance.

Reads GRAFANA_URL, GRAFANA_API_KEY, and DATA_URL from the environment. The
dashboard is looked up by UID (or exact title) and updated in place when it
already exists; re-running this command never creates a duplicate.`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVarP(&dashboardConfigFile, "config", "c", getEnvOrDefault("DEPLOYTRACK_CONFIG_FILE", ""), "Path to deploytrack.yaml configuration file")
	dashboardCmd.Flags().StringVar(&dashboardFile, "dashboard", "", "Path to the dashboard template JSON (overrides config)")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadPipelineConfig(dashboardConfigFile)
	if err != nil {
		return err
	}
	if dashboardFile != "" {
		cfg.Grafana.DashboardFile = dashboardFile
	}

	if errs := cfg.ValidateGrafana(); len(errs) > 0 {
		return fmt.Errorf("dashboard deployment is not configured:\n%s", strings.Join(errs, "\n"))
	}

	logger := newCommandLogger()

	client, err := grafana.NewClient(cfg.Grafana.URL, cfg.Grafana.APIKey, logger)
	if err != nil {
		return err
	}

	p := pipeline.New(cfg, client, nil, logger)

	result, err := p.SyncDashboard(context.Background())
	if err != nil {
		return fmt.Errorf("dashboard deployment failed: %w", err)
	}

	fmt.Printf("Dashboard deployed successfully\n")
	fmt.Printf("  Dashboard URL: %s%s\n", client.BaseURL(), result.URL)
	fmt.Printf("  UID:           %s\n", result.UID)
	fmt.Printf("  Version:       %d\n", result.Version)
	if result.Created {
		fmt.Printf("  Created new dashboard\n")
	} else {
		fmt.Printf("  Updated existing dashboard\n")
	}

	return nil
}
