package config

import "testing"

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Storage(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Storage.Options == nil {
		t.Error("Expected storage options to be initialized")
	}
	if cfg.Storage.HDFSSchemes == nil {
		t.Error("Expected HDFS schemes to be initialized")
	}
}

func TestApplyDefaults_Tables(t *testing.T) {
	cfg := &Config{
		Tables: []TableConfig{
			{Name: "  events ", Location: " hdfs://nn/events\n"},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Tables[0].Name != "events" {
		t.Errorf("Expected trimmed name, got %q", cfg.Tables[0].Name)
	}
	if cfg.Tables[0].Location != "hdfs://nn/events" {
		t.Errorf("Expected trimmed location, got %q", cfg.Tables[0].Location)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "/var/log/tablestore.log",
		},
		Storage: StorageConfig{
			Options: map[string]string{"hdfs_user": "alice"},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/tablestore.log" {
		t.Errorf("Expected explicit output, got %q", cfg.Logging.Output)
	}
	if cfg.Storage.Options["hdfs_user"] != "alice" {
		t.Errorf("Expected explicit hdfs_user, got %q", cfg.Storage.Options["hdfs_user"])
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
}

func TestGetDefaultConfig_HasScratchTable(t *testing.T) {
	cfg := GetDefaultConfig()

	table, ok := cfg.Table("scratch")
	if !ok {
		t.Fatal("Expected default scratch table")
	}
	if table.Location != "memory:///scratch" {
		t.Errorf("Expected scratch table in memory, got %q", table.Location)
	}
}
