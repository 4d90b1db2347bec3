package main

import (
	"fmt"

	"deploytrack/internal/history"
	"deploytrack/internal/server"

	"github.com/spf13/cobra"
)

var (
	serveConfigFile string
	serveLogFile    string
	serveDBPath     string
	serveHost       string
	servePort       int
	serveTestMode   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deployment data server",
	Long: `Start the HTTP server that exposes the published deployment data.

Endpoints: /deployments.json (raw file), /api/deployments (parsed records),
/api/history (recent pipeline runs), /health.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", getEnvOrDefault("DEPLOYTRACK_CONFIG_FILE", ""), "Path to deploytrack.yaml configuration file")
	serveCmd.Flags().StringVar(&serveLogFile, "log", getEnvOrDefault("DEPLOYTRACK_LOG_FILE", "./deploytrack.log"), "Path to log file")
	serveCmd.Flags().StringVar(&serveDBPath, "db", getEnvOrDefault("DEPLOYTRACK_DB_PATH", ""), "Path to SQLite run-history database (empty disables /api/history)")
	serveCmd.Flags().StringVar(&serveHost, "host", getEnvOrDefault("DEPLOYTRACK_HOST", ""), "Host to bind to (overrides config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", getEnvOrDefaultInt("DEPLOYTRACK_PORT", 0), "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveTestMode, "test-mode", false, "Enable test mode (disables rate limiting)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadPipelineConfig(serveConfigFile)
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}

	// Set up logging
	logger, logFileHandle, err := setupLogging(serveLogFile)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logFileHandle.Close()

	logger.Info("Starting deploytrack data server")

	// The server prefers the published snapshot; fall back to the source
	// data file when no serving location is configured.
	dataFile := cfg.TargetPath
	if dataFile == "" {
		dataFile = cfg.DataFile
	}

	// Initialize run-history database
	var hist *history.History
	if serveDBPath != "" {
		logger.Info("Opening run-history database", "db", serveDBPath)
		hist, err = history.NewHistory(serveDBPath)
		if err != nil {
			logger.Error("Failed to open run-history database", "error", err)
			return fmt.Errorf("failed to open run-history database: %w", err)
		}
		defer hist.Close()
	}

	// Create and start server
	srv := server.NewServer(dataFile, hist, logger, serveTestMode)

	logger.Info("Starting HTTP server", "host", cfg.Server.Host, "port", cfg.Server.Port)
	if err := srv.Start(cfg.Server.Host, cfg.Server.Port); err != nil {
		logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
