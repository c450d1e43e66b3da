// Command tablestore inspects and edits table storage through the same
// backends the table engine uses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/config"
	"github.com/marmos91/tablestore/pkg/metrics"
	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tablestore: %v\n", err)
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand.
type app struct {
	configPath  string
	logLevel    string
	options     []string
	metricsFile string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "tablestore",
		Short:         "Inspect and edit table storage (HDFS, ViewFS, S3, Badger, memory)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.metricsFile == "" {
				return nil
			}
			if err := metrics.WriteToFile(a.metricsFile); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/tablestore/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override: debug / info / warn / error")
	cmd.PersistentFlags().StringArrayVarP(&a.options, "option", "o", nil, "storage option key=value, repeatable; overrides configured options")
	cmd.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write store operation metrics to this file (Prometheus text format) on exit")

	cmd.AddCommand(
		newLsCmd(a),
		newStatCmd(a),
		newCatCmd(a),
		newPutCmd(a),
		newRmCmd(a),
		newCpCmd(a),
		newMvCmd(a),
		newLogCmd(a),
		newSchemesCmd(a),
		newConfigCmd(a),
	)
	return cmd
}

// setup loads the configuration, configures logging and registers the
// storage backends.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if _, ok := logger.ParseLevel(a.logLevel); !ok {
			return fmt.Errorf("unknown log level %q", a.logLevel)
		}
		cfg.Logging.Level = strings.ToUpper(a.logLevel)
	}

	// Command output owns stdout
	output := cfg.Logging.Output
	if output == "stdout" {
		output = "stderr"
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, output); err != nil {
		return err
	}

	if a.metricsFile != "" {
		metrics.InitRegistry()
	}

	config.RegisterBackends(cfg)
	a.cfg = cfg
	return nil
}

// overrides parses the --option flags.
func (a *app) overrides() (storage.StorageOptions, error) {
	opts := make(storage.StorageOptions, len(a.options))
	for _, kv := range a.options {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q: expected key=value", kv)
		}
		opts[key] = value
	}
	return opts, nil
}

// withStore opens the object store of target, runs fn and closes the store.
func (a *app) withStore(cmd *cobra.Command, target string, fn func(ctx context.Context, store storage.ObjectStore) error) error {
	opts, err := a.overrides()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, _, err := config.OpenStore(ctx, a.cfg, target, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := storage.Close(store); err != nil {
			logger.Warn("Failed to close %s: %v", store, err)
		}
	}()
	return fn(ctx, store)
}
