package main

import (
	"fmt"

	"deploytrack/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	calculateConfigFile string
	calculateDataFile   string
)

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Calculate deployment delays",
	Long: `Read the deployments data file, calculate the delay between planned and
actual deployment dates for every deployed record, and update the file.

The file is only rewritten when a derived value actually changed, so running
this command twice in a row leaves the file byte-identical.`,
	RunE: runCalculate,
}

func init() {
	calculateCmd.Flags().StringVarP(&calculateConfigFile, "config", "c", getEnvOrDefault("DEPLOYTRACK_CONFIG_FILE", ""), "Path to deploytrack.yaml configuration file")
	calculateCmd.Flags().StringVar(&calculateDataFile, "data", "", "Path to deployments.json (overrides config)")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	cfg, err := loadPipelineConfig(calculateConfigFile)
	if err != nil {
		return err
	}
	if calculateDataFile != "" {
		cfg.DataFile = calculateDataFile
	}

	logger := newCommandLogger()
	p := pipeline.New(cfg, nil, nil, logger)

	_, stats, changed, _, err := p.Calculate()
	if err != nil {
		return fmt.Errorf("delay calculation failed: %w", err)
	}

	fmt.Printf("Delays calculated successfully\n")
	fmt.Printf("  Data file:         %s\n", cfg.DataFile)
	fmt.Printf("  Total deployments: %d\n", stats.Total)
	fmt.Printf("  Sprints:           %d\n", stats.Sprints)
	fmt.Printf("  Hotfixes:          %d\n", stats.Hotfixes)
	fmt.Printf("  Total delay:       %d days\n", stats.TotalDelay)
	fmt.Printf("  Average delay:     %.1f days\n", stats.AvgDelay)
	if changed {
		fmt.Printf("  File updated\n")
	} else {
		fmt.Printf("  No changes, file left untouched\n")
	}

	return nil
}
