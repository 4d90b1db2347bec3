package main

import (
	"fmt"

	"deploytrack/internal/config"
	"deploytrack/internal/publish"

	"github.com/spf13/cobra"
)

var (
	publishConfigFile string
	publishTarget     string
	publishBackupDir  string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the data file to its serving location",
	Long: `Copy the validated deployments data file to the serving location with an
atomic replace, then rotate the timestamped backup set.

A reader observing the serving location never sees a partially written file.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishConfigFile, "config", "c", getEnvOrDefault("DEPLOYTRACK_CONFIG_FILE", ""), "Path to deploytrack.yaml configuration file")
	publishCmd.Flags().StringVar(&publishTarget, "target", "", "Serving location path (overrides config)")
	publishCmd.Flags().StringVar(&publishBackupDir, "backup-dir", "", "Backup directory (overrides config)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadPipelineConfig(publishConfigFile)
	if err != nil {
		return err
	}
	if publishTarget != "" {
		cfg.TargetPath = publishTarget
	}
	if publishBackupDir != "" {
		cfg.BackupDir = publishBackupDir
	}

	if cfg.TargetPath == "" {
		return fmt.Errorf("no serving location configured: set 'target_path' in the config file or use --target")
	}

	logger := newCommandLogger()

	var owner *publish.Owner
	if cfg.Owner != nil {
		owner = &publish.Owner{UID: cfg.Owner.UID, GID: cfg.Owner.GID}
	}
	publisher := publish.NewPublisher(owner, logger)

	if err := publisher.Publish(cfg.DataFile, cfg.TargetPath); err != nil {
		return err
	}

	if cfg.BackupDir != "" {
		if err := publisher.Backup(cfg.TargetPath, cfg.BackupDir, cfg.Retention); err != nil {
			return err
		}
	}

	fmt.Printf("Published %s to %s\n", cfg.DataFile, cfg.TargetPath)
	if cfg.BackupDir != "" {
		fmt.Printf("Backups rotated in %s (retention %d)\n", cfg.BackupDir, effectiveRetention(cfg))
	}

	return nil
}

func effectiveRetention(cfg *config.Config) int {
	if cfg.Retention > 0 {
		return cfg.Retention
	}
	return publish.DefaultRetention
}
