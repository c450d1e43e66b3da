package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/backends"
	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/metrics"
	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/marmos91/tablestore/pkg/storage/hdfs"
)

// RegisterBackends registers every storage backend in the global
// registries, plus the HDFS backend under cfg's extra schemes.
func RegisterBackends(cfg *Config) {
	backends.RegisterAll()
	if len(cfg.Storage.HDFSSchemes) > 0 {
		hdfs.RegisterHandlers(cfg.Storage.HDFSSchemes...)
	}
}

// OpenStore resolves target (a table name or location) and opens the object
// store for it, scoped to the table root. Operations are recorded under the
// location's scheme when metrics are enabled.
//
// Parameters:
//   - ctx: Context for store construction
//   - cfg: Loaded configuration
//   - target: Table name or location URL
//   - overrides: Options taking precedence over the configured ones
//
// Returns:
//   - storage.ObjectStore: Store rooted at the table location
//   - *url.URL: The resolved location
//   - error: Resolution or construction error
func OpenStore(ctx context.Context, cfg *Config, target string, overrides storage.StorageOptions) (storage.ObjectStore, *url.URL, error) {
	location, opts := cfg.Resolve(target)
	opts = opts.Merge(overrides)

	u, err := storage.ParseURL(location)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.Open(ctx, u, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", location, err)
	}

	store = metrics.Instrument(store, strings.ToLower(u.Scheme), metrics.NewStoreMetrics())

	logger.Debug("Opened %s for %s", store, location)
	return store, u, nil
}

// OpenLogStore resolves target and opens the log store of the table over
// the store OpenStore returns.
func OpenLogStore(ctx context.Context, cfg *Config, target string, overrides storage.StorageOptions) (logstore.LogStore, error) {
	store, u, err := OpenStore(ctx, cfg, target, overrides)
	if err != nil {
		return nil, err
	}

	location, opts := cfg.Resolve(target)
	ls, err := logstore.ForURL(store, u, opts.Merge(overrides))
	if err != nil {
		_ = storage.Close(store)
		return nil, fmt.Errorf("failed to open log store for %s: %w", location, err)
	}
	return ls, nil
}
