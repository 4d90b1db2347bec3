// Package config loads the pipeline configuration from a YAML file and
// applies environment overrides. The resulting Config struct is threaded
// explicitly through the entry points; there is no ambient global state.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDataFile      = "data/deployments.json"
	DefaultDashboardFile = "dashboards/deployment-dashboard.json"
	DefaultRetention     = 10
	DefaultEarlyWarnDays = 60
	DefaultServerHost    = "127.0.0.1"
	DefaultServerPort    = 8080
)

// Config is the full pipeline configuration.
type Config struct {
	// DataFile is the source-controlled record file the calculator reads
	// and writes.
	DataFile string `yaml:"data_file"`

	// TargetPath is the serving location the snapshot publisher copies the
	// validated file to.
	TargetPath string `yaml:"target_path"`

	// BackupDir holds the timestamped backup set.
	BackupDir string `yaml:"backup_dir"`

	// Retention is the number of backups kept; older ones are evicted.
	Retention int `yaml:"retention"`

	// EarlyWarnDays triggers a warning when a deployment precedes its
	// planned date by more than this many days. Zero disables the check.
	EarlyWarnDays int `yaml:"early_warn_days"`

	// Owner optionally names the serving principal applied to the
	// published file. Leave unset when not running as root.
	Owner *OwnerConfig `yaml:"owner"`

	Grafana GrafanaConfig `yaml:"grafana"`
	Server  ServerConfig  `yaml:"server"`
}

// OwnerConfig identifies the serving principal by numeric ids.
type OwnerConfig struct {
	UID int `yaml:"uid"`
	GID int `yaml:"gid"`
}

// GrafanaConfig configures the dashboard synchronizer.
// APIKey is never read from the file; it comes from GRAFANA_API_KEY only.
type GrafanaConfig struct {
	URL           string `yaml:"url"`
	DashboardFile string `yaml:"dashboard_file"`
	UID           string `yaml:"uid"`
	Title         string `yaml:"title"`
	DataURL       string `yaml:"data_url"`
	APIKey        string `yaml:"-"`
}

// ServerConfig configures the data-serving HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Load reads the YAML config file, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	cfg.applyDefaults()
	cfg.ApplyEnv()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration in %s:\n%s", path, strings.Join(errs, "\n"))
	}

	return &cfg, nil
}

// Default returns a configuration with defaults and environment overrides
// applied, for running without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	cfg.ApplyEnv()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.DataFile == "" {
		c.DataFile = DefaultDataFile
	}
	if c.Retention == 0 {
		c.Retention = DefaultRetention
	}
	if c.EarlyWarnDays == 0 {
		c.EarlyWarnDays = DefaultEarlyWarnDays
	}
	if c.Grafana.DashboardFile == "" {
		c.Grafana.DashboardFile = DefaultDashboardFile
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

// ApplyEnv applies the environment overrides shared with the original
// Jenkins pipeline: GRAFANA_URL, GRAFANA_API_KEY, and DATA_URL.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("GRAFANA_URL"); v != "" {
		c.Grafana.URL = v
	}
	if v := os.Getenv("GRAFANA_API_KEY"); v != "" {
		c.Grafana.APIKey = v
	}
	if v := os.Getenv("DATA_URL"); v != "" {
		c.Grafana.DataURL = v
	}
}

// Validate accumulates every configuration problem instead of stopping at
// the first, so the operator can fix the file in one pass.
func (c *Config) Validate() []string {
	var errors []string

	if c.DataFile == "" {
		errors = append(errors, "  - missing required 'data_file' field")
	}

	if c.Retention < 0 {
		errors = append(errors, fmt.Sprintf("  - retention must be a positive integer, got %d", c.Retention))
	}

	if c.EarlyWarnDays < 0 {
		errors = append(errors, fmt.Sprintf("  - early_warn_days must not be negative, got %d", c.EarlyWarnDays))
	}

	if c.Owner != nil {
		if c.Owner.UID < 0 || c.Owner.GID < 0 {
			errors = append(errors, "  - owner uid/gid must not be negative")
		}
	}

	if c.Grafana.URL != "" && !strings.HasPrefix(c.Grafana.URL, "http://") && !strings.HasPrefix(c.Grafana.URL, "https://") {
		errors = append(errors, fmt.Sprintf("  - grafana.url must be an http(s) URL, got '%s'", c.Grafana.URL))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("  - server.port must be between 0 and 65535, got %d", c.Server.Port))
	}

	return errors
}

// ValidateGrafana checks the fields the dashboard synchronizer needs.
// Split from Validate so the calculate and publish commands can run
// without any Grafana credentials.
func (c *Config) ValidateGrafana() []string {
	var errors []string

	if c.Grafana.URL == "" {
		errors = append(errors, "  - GRAFANA_URL environment variable (or grafana.url) must be set")
	}
	if c.Grafana.APIKey == "" {
		errors = append(errors, "  - GRAFANA_API_KEY environment variable must be set")
	}
	if c.Grafana.DashboardFile == "" {
		errors = append(errors, "  - missing required 'grafana.dashboard_file' field")
	}

	return errors
}
