package config

import (
	"strings"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values ("", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by each backend's option parser
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStorageDefaults(&cfg.Storage)
	applyTableDefaults(cfg.Tables)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyStorageDefaults initializes the shared option map.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Options == nil {
		cfg.Options = make(map[string]string)
	}
	if cfg.HDFSSchemes == nil {
		cfg.HDFSSchemes = []string{}
	}
}

// applyTableDefaults trims table names and locations.
func applyTableDefaults(tables []TableConfig) {
	for i := range tables {
		table := &tables[i]
		table.Name = strings.TrimSpace(table.Name)
		table.Location = strings.TrimSpace(table.Location)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Tables: []TableConfig{
			{
				Name:     "scratch",
				Location: "memory:///scratch",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
