package logstore

import (
	"context"
	"net/url"
	"sync"

	"github.com/marmos91/tablestore/pkg/registry"
	"github.com/marmos91/tablestore/pkg/storage"
)

// LogStoreFactory builds log stores over an already resolved object store.
type LogStoreFactory interface {
	WithOptions(store storage.ObjectStore, location *url.URL, opts storage.StorageOptions) (LogStore, error)
}

// DefaultFactory builds a DefaultLogStore for any location.
type DefaultFactory struct{}

// WithOptions returns a DefaultLogStore over store.
func (DefaultFactory) WithOptions(store storage.ObjectStore, location *url.URL, opts storage.StorageOptions) (LogStore, error) {
	return NewDefaultLogStore(store, Config{Location: location, Options: opts}), nil
}

var logStores = sync.OnceValue(func() *registry.Registry[LogStoreFactory] {
	return registry.New[LogStoreFactory]()
})

// LogStores returns the process-wide log store factory registry.
func LogStores() *registry.Registry[LogStoreFactory] {
	return logStores()
}

// ForURL builds the log store registered for location's scheme over store.
// Returns storage.ErrInvalidLocation if the scheme is unregistered.
func ForURL(store storage.ObjectStore, location *url.URL, opts storage.StorageOptions) (LogStore, error) {
	factory, err := LogStores().GetForURL(location)
	if err != nil {
		return nil, storage.NewError(storage.ErrInvalidLocation, "", location.String(), err)
	}
	return factory.WithOptions(store, location, opts)
}

// Open resolves location through both registries: the object store
// factory builds the store, the result is scoped to the returned root, and
// the log store factory wraps it.
func Open(ctx context.Context, location string, opts storage.StorageOptions) (LogStore, error) {
	u, err := storage.ParseURL(location)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, u, opts)
	if err != nil {
		return nil, err
	}
	ls, err := ForURL(store, u, opts)
	if err != nil {
		_ = storage.Close(store)
		return nil, err
	}
	return ls, nil
}
