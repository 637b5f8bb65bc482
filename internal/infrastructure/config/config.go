// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	for _, imp := range cfg.Imports { ... }
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bankfeedhq/camt54-sync-backend/internal/domain/recon"
)

// Config represents the entire application configuration.
type Config struct {
	Imports       []ImportConfig      `yaml:"imports"`
	Storage       StorageConfig       `yaml:"storage"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Events        EventsConfig        `yaml:"events"`
	API           APIConfig           `yaml:"api"`
	PollInterval  Duration            `yaml:"poll_interval"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// Duration decodes YAML strings like "30s" into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ImportConfig is one folder-watching import setup. Each entry can be
// independently activated or deactivated.
type ImportConfig struct {
	Name                  string         `yaml:"name"`
	Active                bool           `yaml:"active"`
	WatchFolder           string         `yaml:"watch_folder"`
	ProcessedFolder       string         `yaml:"processed_folder"`
	ErrorFolder           string         `yaml:"error_folder"`
	JournalID             string         `yaml:"journal_id"`
	CompanyID             string         `yaml:"company_id"`
	AutoReconcile         bool           `yaml:"auto_reconcile"`
	ReconcileMethod       recon.Strategy `yaml:"reconcile_method"`
	FilePattern           string         `yaml:"file_pattern"`
	ProcessSubfolders     bool           `yaml:"process_subfolders"`
	DeleteAfterProcessing bool           `yaml:"delete_after_processing"`
}

// StorageConfig holds the local bookkeeping database configuration.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LedgerConfig selects the ledger backend the matcher queries.
type LedgerConfig struct {
	Driver string `yaml:"driver"` // "memory" or "postgres"
	DSN    string `yaml:"dsn"`
}

// EventsConfig holds the optional kafka publisher settings.
type EventsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ObservabilityConfig holds observability settings.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${LEDGER_DSN})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only. It yields
// at most one import configuration, enough for a single watched folder.
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("CAMT54_DB_PATH", "camt54_sync.db"),
		},
		Ledger: LedgerConfig{
			Driver: getEnv("LEDGER_DRIVER", "memory"),
			DSN:    os.Getenv("LEDGER_DSN"),
		},
		Events: EventsConfig{
			Topic: getEnv("CAMT54_EVENTS_TOPIC", "camt54.file_processed"),
		},
		API: APIConfig{
			Port: getEnvInt("CAMT54_API_PORT", 8080),
		},
		PollInterval: Duration(getEnvDuration("CAMT54_POLL_INTERVAL", time.Minute)),
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}

	if watch := os.Getenv("CAMT54_WATCH_FOLDER"); watch != "" {
		cfg.Imports = []ImportConfig{{
			Name:            getEnv("CAMT54_CONFIG_NAME", "default"),
			Active:          true,
			WatchFolder:     watch,
			ProcessedFolder: os.Getenv("CAMT54_PROCESSED_FOLDER"),
			ErrorFolder:     os.Getenv("CAMT54_ERROR_FOLDER"),
			JournalID:       getEnv("CAMT54_JOURNAL_ID", "BANK"),
			CompanyID:       getEnv("CAMT54_COMPANY_ID", "main"),
			AutoReconcile:   true,
			ReconcileMethod: recon.StrategySmartMatch,
			FilePattern:     getEnv("CAMT54_FILE_PATTERN", "*.xml"),
		}}
	}

	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment
// variables.
func LoadOrEnv() *Config {
	return LoadOrEnvWithPath("config.yaml")
}

// LoadOrEnvWithPath tries to load from the specified path, falls back to
// environment variables.
func LoadOrEnvWithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// Validate rejects configurations that could otherwise only fail at runtime.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, imp := range c.Imports {
		if imp.Name == "" {
			return fmt.Errorf("imports[%d]: name is required", i)
		}
		if seen[imp.Name] {
			return fmt.Errorf("import %q: duplicate name", imp.Name)
		}
		seen[imp.Name] = true
		if imp.WatchFolder == "" {
			return fmt.Errorf("import %q: watch_folder is required", imp.Name)
		}
		if _, err := recon.ParseStrategy(string(imp.ReconcileMethod)); err != nil {
			return fmt.Errorf("import %q: %w", imp.Name, err)
		}
	}
	switch c.Ledger.Driver {
	case "", "memory":
	case "postgres":
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger: postgres driver requires a dsn")
		}
	default:
		return fmt.Errorf("ledger: unknown driver %q", c.Ledger.Driver)
	}
	return nil
}

// ImportByName finds a configured import.
func (c *Config) ImportByName(name string) (ImportConfig, bool) {
	for _, imp := range c.Imports {
		if imp.Name == name {
			return imp, true
		}
	}
	return ImportConfig{}, false
}

func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "camt54_sync.db"
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "memory"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "camt54.file_processed"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(time.Minute)
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	for i := range c.Imports {
		if c.Imports[i].FilePattern == "" {
			c.Imports[i].FilePattern = "*.xml"
		}
		if c.Imports[i].ReconcileMethod == "" {
			c.Imports[i].ReconcileMethod = recon.StrategySmartMatch
		}
	}
}

// getEnv retrieves an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default.
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvDuration retrieves a duration environment variable with a fallback
// default.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
