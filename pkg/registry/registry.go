package registry

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Registry maps URL schemes to factories.
// It provides thread-safe registration and lookup.
//
// Entries are keyed by scheme only; the authority and path of a URL never
// take part in a lookup. Registering a scheme twice replaces the previous
// entry (last write wins), so registration is idempotent.
//
// Example usage:
//
//	reg := registry.New[storage.ObjectStoreFactory]()
//	reg.Insert("hdfs", hdfsFactory)
//	reg.Insert("viewfs", hdfsFactory)
//
//	factory, ok := reg.Get("hdfs")
type Registry[F any] struct {
	mu      sync.RWMutex
	entries map[string]F
}

// New creates an empty registry.
func New[F any]() *Registry[F] {
	return &Registry[F]{
		entries: make(map[string]F),
	}
}

// Key normalizes a scheme, a "scheme://" prefix or a full URL into a
// registry key.
func Key(scheme string) string {
	if i := strings.Index(scheme, ":"); i >= 0 {
		scheme = scheme[:i]
	}
	return strings.ToLower(strings.TrimSpace(scheme))
}

// Insert registers factory under scheme, replacing any existing entry.
func (r *Registry[F]) Insert(scheme string, factory F) error {
	key := Key(scheme)
	if key == "" {
		return fmt.Errorf("cannot register factory with empty scheme")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = factory
	return nil
}

// Get retrieves the factory registered for scheme.
func (r *Registry[F]) Get(scheme string) (F, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.entries[Key(scheme)]
	return factory, ok
}

// GetForURL retrieves the factory registered for the scheme of u.
// Returns an error if no factory is registered.
func (r *Registry[F]) GetForURL(u *url.URL) (F, error) {
	factory, ok := r.Get(u.Scheme)
	if !ok {
		var zero F
		return zero, fmt.Errorf("no factory registered for scheme %q", u.Scheme)
	}
	return factory, nil
}

// Contains reports whether scheme has a registered factory.
func (r *Registry[F]) Contains(scheme string) bool {
	_, ok := r.Get(scheme)
	return ok
}

// Schemes returns all registered schemes, sorted.
func (r *Registry[F]) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemes := make([]string, 0, len(r.entries))
	for scheme := range r.entries {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// Len returns the number of registered schemes.
func (r *Registry[F]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
