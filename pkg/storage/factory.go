package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/marmos91/tablestore/internal/ratelimiter"
	"github.com/marmos91/tablestore/pkg/registry"
)

// ObjectStoreFactory builds object stores for the URL schemes it is
// registered under.
type ObjectStoreFactory interface {
	// ParseURLOpts builds a store for u.
	//
	// It returns the store together with the root Path to apply on top of
	// it. A non-empty root tells the caller to scope the store with a
	// PrefixStore.
	//
	// Returns ErrInvalidLocation if the factory does not serve u's scheme
	// or u cannot be mapped to the backend, and ErrConstructionFailure if
	// the backend cannot be built.
	ParseURLOpts(ctx context.Context, u *url.URL, opts StorageOptions) (ObjectStore, Path, error)
}

// ObjectStoreFactoryFunc adapts a function to ObjectStoreFactory.
type ObjectStoreFactoryFunc func(ctx context.Context, u *url.URL, opts StorageOptions) (ObjectStore, Path, error)

// ParseURLOpts calls f.
func (f ObjectStoreFactoryFunc) ParseURLOpts(ctx context.Context, u *url.URL, opts StorageOptions) (ObjectStore, Path, error) {
	return f(ctx, u, opts)
}

var factories = sync.OnceValue(func() *registry.Registry[ObjectStoreFactory] {
	return registry.New[ObjectStoreFactory]()
})

// Factories returns the process-wide object store factory registry.
//
// The registry is created on first use and lives for the rest of the
// process. Backends add themselves through their RegisterHandlers functions.
func Factories() *registry.Registry[ObjectStoreFactory] {
	return factories()
}

// ParseURL parses a table location into an absolute URL.
// Returns ErrInvalidLocation for malformed or scheme-less locations.
func ParseURL(location string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return nil, &StorageError{Code: ErrInvalidLocation, Path: location, Err: err}
	}
	if u.Scheme == "" {
		return nil, &StorageError{Code: ErrInvalidLocation, Path: location, Err: fmt.Errorf("location has no scheme")}
	}
	return u, nil
}

// LookupFactory returns the factory registered for u's scheme.
// Returns ErrInvalidLocation if the scheme is unregistered.
func LookupFactory(u *url.URL) (ObjectStoreFactory, error) {
	factory, err := Factories().GetForURL(u)
	if err != nil {
		return nil, &StorageError{Code: ErrInvalidLocation, Path: u.String(), Err: err}
	}
	return factory, nil
}

// StoreForURL resolves u through the factory registry.
func StoreForURL(ctx context.Context, u *url.URL, opts StorageOptions) (ObjectStore, Path, error) {
	factory, err := LookupFactory(u)
	if err != nil {
		return nil, Path{}, err
	}
	return factory.ParseURLOpts(ctx, u, opts)
}

// Open resolves u and applies the returned root, yielding a store whose
// paths are relative to the table location.
//
// When opts set max_requests_per_second the store is also throttled.
func Open(ctx context.Context, u *url.URL, opts StorageOptions) (ObjectStore, error) {
	throttle, err := ParseThrottleOptions(opts)
	if err != nil {
		return nil, &StorageError{Code: ErrConstructionFailure, Path: u.String(), Err: err}
	}

	store, root, err := StoreForURL(ctx, u, opts)
	if err != nil {
		return nil, err
	}
	if !root.IsRoot() {
		store = NewPrefixStore(store, root)
	}
	if throttle.MaxRequestsPerSecond > 0 {
		store = NewThrottledStore(store, ratelimiter.New(throttle.MaxRequestsPerSecond, throttle.MaxRequestBurst))
	}
	return store, nil
}

// Close releases the resources held by store, if it holds any.
func Close(store ObjectStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
