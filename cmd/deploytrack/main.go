package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "deploytrack",
	Short: "Deployment metrics pipeline",
	Long: `Deploytrack tracks software deployment events (sprint releases and hotfixes),
derives delay metrics between planned and actual deployment dates, and publishes
both the data and a Grafana dashboard.

Typical usage is 'deploytrack run' from a scheduled job; the individual stages
are also available as separate commands.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Register subcommands
	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
