package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a default configuration file to the default location.
//
// Returns the path of the written file. Fails if the file already exists
// and force is false.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()
	if err := InitConfigToPath(configPath, force); err != nil {
		return "", err
	}
	return configPath, nil
}

// InitConfigToPath writes a default configuration file to configPath,
// creating parent directories as needed.
func InitConfigToPath(configPath string, force bool) error {
	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// configSection is one top-level key of the generated file with its
// explanatory header.
type configSection struct {
	key     string
	comment []string
	value   any
}

// generateYAMLWithComments renders cfg as YAML, one commented block per
// top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	sections := []configSection{
		{
			key: "logging",
			comment: []string{
				"Logging configuration",
				"level: DEBUG, INFO, WARN, ERROR",
				"format: text, json",
				"output: stdout, stderr, or a file path",
			},
			value: cfg.Logging,
		},
		{
			key: "storage",
			comment: []string{
				"Storage options shared by every table",
				"HDFS:   hdfs_user, hdfs_namenodes, hadoop_conf_dir, hdfs_create_root, dfs.* keys",
				"S3:     aws_region, aws_endpoint_url, aws_access_key_id, aws_secret_access_key,",
				"        aws_force_path_style, aws_conditional_put (etag, disabled)",
				"Badger: badger_sync_writes, badger_in_memory",
				"hdfs_schemes lists extra URL schemes served by the HDFS backend",
			},
			value: cfg.Storage,
		},
		{
			key: "tables",
			comment: []string{
				"Named tables. A name can be used anywhere a table location is accepted.",
				"Per-table options override the shared storage options.",
			},
			value: cfg.Tables,
		},
	}

	var b strings.Builder
	b.WriteString("# Tablestore Configuration File\n")
	b.WriteString("#\n")
	b.WriteString("# Values can be overridden with TABLESTORE_* environment variables,\n")
	b.WriteString("# e.g. TABLESTORE_LOGGING_LEVEL=DEBUG\n")

	for _, section := range sections {
		data, err := yaml.Marshal(map[string]any{section.key: section.value})
		if err != nil {
			return "", fmt.Errorf("failed to marshal %s section: %w", section.key, err)
		}
		b.WriteString("\n")
		for _, line := range section.comment {
			b.WriteString("# ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.Write(data)
	}

	return b.String(), nil
}
