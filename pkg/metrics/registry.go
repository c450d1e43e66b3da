// Package metrics provides Prometheus metrics collection for object stores.
//
// All metrics are optional - if not initialized, constructors return nil and
// Instrument leaves stores untouched, so tablestore runs with or without
// metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Wrap a store
//	store = metrics.Instrument(store, "s3", metrics.NewStoreMetrics())
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all tablestore metrics
	// Protected by registryOnce for write-once, read-many pattern
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// This must be called before creating any metrics instances. It's safe to call
// multiple times - subsequent calls are ignored.
//
// If not called, GetRegistry() will return nil and all metrics constructors
// will return nil.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called, indicating metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
//
// Metrics are enabled if InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// WriteToFile writes the current value of every registered metric to path
// in the Prometheus text format. It is a no-op when metrics are disabled.
func WriteToFile(path string) error {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, reg)
}
