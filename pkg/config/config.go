package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/spf13/viper"
)

const keyDelimiter = "::"

// Config represents the complete tablestore configuration.
//
// This structure captures:
//   - Logging configuration
//   - Storage options shared by every table
//   - Named table definitions (aliases for table locations)
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (TABLESTORE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Storage holds the backend settings shared by all tables
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Tables defines named table locations
	Tables []TableConfig `mapstructure:"tables" yaml:"tables" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// StorageConfig holds the backend settings shared by all tables.
type StorageConfig struct {
	// Options are the default storage options of every table.
	// Per-table options override them key by key.
	// Keys are lowercased on load; case-sensitive Hadoop keys such as
	// ViewFS links belong in the hadoop_conf_dir configuration files.
	Options map[string]string `mapstructure:"options" yaml:"options"`

	// HDFSSchemes are additional URL schemes served by the HDFS backend
	// (e.g. a site-specific alias of hdfs)
	HDFSSchemes []string `mapstructure:"hdfs_schemes" yaml:"hdfs_schemes" validate:"dive,required,alphanum"`
}

// TableConfig defines a named table.
type TableConfig struct {
	// Name is the alias the table is addressed by
	Name string `mapstructure:"name" yaml:"name" validate:"required,excludes=:/"`

	// Location is the table URL (hdfs://, viewfs://, s3://, badger://, memory://)
	Location string `mapstructure:"location" yaml:"location" validate:"required"`

	// Options are the storage options of this table
	Options map[string]string `mapstructure:"options" yaml:"options,omitempty"`
}

// Table returns the table named name.
func (c *Config) Table(name string) (*TableConfig, bool) {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i], true
		}
	}
	return nil, false
}

// TableOptions returns the storage options of the table named name: the
// global options overlaid with the table's own.
func (c *Config) TableOptions(name string) storage.StorageOptions {
	opts := storage.StorageOptions(c.Storage.Options).Merge()
	if table, ok := c.Table(name); ok {
		opts = opts.Merge(table.Options)
	}
	return opts
}

// Resolve maps a table name or location to a location and its options.
//
// Configured table names win; anything else is treated as a location and
// gets the global options.
func (c *Config) Resolve(target string) (string, storage.StorageOptions) {
	if table, ok := c.Table(target); ok {
		return table.Location, c.TableOptions(target)
	}
	return target, storage.StorageOptions(c.Storage.Options).Merge()
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TABLESTORE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	// Storage option keys contain dots (dfs.nameservices), so nesting uses
	// a delimiter that cannot appear in them
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use TABLESTORE_ prefix and underscores
	// Example: TABLESTORE_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("TABLESTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_", ".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/tablestore/config.{yaml,toml}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
//
// A missing file at the default location is acceptable; an explicitly
// requested file must exist.
func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file %s does not exist", configPath)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tablestore")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "tablestore")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
