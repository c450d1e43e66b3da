package memory

import (
	"context"
	"net/url"

	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/registry"
	"github.com/marmos91/tablestore/pkg/storage"
)

// Schemes are the URL schemes served by the in-memory backend.
var Schemes = []string{"memory"}

// Factory creates a fresh MemoryStore for every memory:// URL.
//
// The URL path becomes the root, so memory:///warehouse/t1 yields a store
// scoped to warehouse/t1.
type Factory struct{}

func (Factory) ParseURLOpts(ctx context.Context, u *url.URL, _ storage.StorageOptions) (storage.ObjectStore, storage.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Path{}, err
	}
	if registry.Key(u.Scheme) != Schemes[0] {
		return nil, storage.Path{}, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "unsupported scheme %q", u.Scheme)
	}
	root, err := storage.ParsePath(u.Path)
	if err != nil {
		return nil, storage.Path{}, storage.NewError(storage.ErrInvalidLocation, StoreName, u.String(), err)
	}
	return NewMemoryStore(), root, nil
}

func (Factory) WithOptions(store storage.ObjectStore, location *url.URL, opts storage.StorageOptions) (logstore.LogStore, error) {
	return logstore.NewDefaultLogStore(store, logstore.Config{Location: location, Options: opts}), nil
}

// RegisterHandlers registers the in-memory backend in both global registries.
func RegisterHandlers() {
	f := Factory{}
	for _, scheme := range Schemes {
		_ = storage.Factories().Insert(scheme, f)
		_ = logstore.LogStores().Insert(scheme, f)
	}
	logger.Debug("Registered %s handlers for schemes %v", StoreName, Schemes)
}
