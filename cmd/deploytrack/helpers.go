package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"deploytrack/internal/config"
	"deploytrack/pkg/fileutil"
)

// loadPipelineConfig resolves the configuration for a command: an explicit
// --config path wins, then the default search locations, then built-in
// defaults with environment overrides.
func loadPipelineConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}

	if found := fileutil.SearchPathsOptional(fileutil.DefaultConfigPaths("deploytrack.yaml")); found != "" {
		return config.Load(found)
	}

	return config.Default(), nil
}

// newCommandLogger returns a text logger to stderr for the batch commands.
func newCommandLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	// Create log directory if needed
	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file with secure permissions
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	// Create JSON handler for structured logging
	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	logger := slog.New(handler)

	return logger, file, nil
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
