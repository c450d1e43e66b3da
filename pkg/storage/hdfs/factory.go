package hdfs

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/registry"
	"github.com/marmos91/tablestore/pkg/storage"
)

const (
	// SchemeHDFS addresses a namenode directly: hdfs://<namenode>/<path>.
	SchemeHDFS = "hdfs"

	// SchemeViewFS addresses a ViewFS mount table: viewfs://<table>/<path>.
	SchemeViewFS = "viewfs"
)

// Schemes are the URL schemes served by the HDFS backend.
var Schemes = []string{SchemeHDFS, SchemeViewFS}

// ClientFactory builds the native client for a table URL.
type ClientFactory func(ctx context.Context, u *url.URL, opts Options) (Client, error)

// Factory builds HDFS backends and their log stores.
//
// One Factory serves both the hdfs and viewfs schemes; the scheme only
// changes how the native client resolves the namespace.
type Factory struct {
	schemes   map[string]bool
	newClient ClientFactory
}

// NewFactory creates a Factory for the hdfs and viewfs schemes plus
// additional, which are treated like hdfs.
func NewFactory(additional ...string) *Factory {
	f := &Factory{
		schemes:   make(map[string]bool),
		newClient: DefaultClientFactory,
	}
	for _, s := range append(append([]string(nil), Schemes...), additional...) {
		if key := registry.Key(s); key != "" {
			f.schemes[key] = true
		}
	}
	return f
}

// WithClientFactory returns a copy of f building native clients with fn.
func (f *Factory) WithClientFactory(fn ClientFactory) *Factory {
	return &Factory{schemes: f.schemes, newClient: fn}
}

// Serves reports whether f handles scheme.
func (f *Factory) Serves(scheme string) bool {
	return f.schemes[registry.Key(scheme)]
}

// ParseURLOpts builds a Backend rooted at the path of u.
//
// The returned root Path is always empty: the Backend itself is already
// scoped to the URL path.
func (f *Factory) ParseURLOpts(ctx context.Context, u *url.URL, opts storage.StorageOptions) (storage.ObjectStore, storage.Path, error) {
	// ========================================================================
	// Step 1: Validate the location
	// ========================================================================

	if err := ctx.Err(); err != nil {
		return nil, storage.Path{}, err
	}
	if !f.Serves(u.Scheme) {
		return nil, storage.Path{}, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "unsupported scheme %q", u.Scheme)
	}
	if u.Opaque != "" {
		return nil, storage.Path{}, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "opaque URL cannot be mapped to a filesystem path")
	}

	// ========================================================================
	// Step 2: Decode options and build the native client
	// ========================================================================

	options, err := ParseOptions(opts)
	if err != nil {
		return nil, storage.Path{}, storage.NewError(storage.ErrConstructionFailure, StoreName, u.String(), err)
	}

	client, err := f.newClient(ctx, u, options)
	if err != nil {
		return nil, storage.Path{}, storage.NewError(storage.ErrConstructionFailure, StoreName, u.String(), err)
	}

	// ========================================================================
	// Step 3: Root the backend at the canonical URL path
	// ========================================================================

	backend, err := NewBackend(client, u, options.CreateRoot)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("Failed to close HDFS client for %s: %v", u.Redacted(), closeErr)
		}
		return nil, storage.Path{}, err
	}
	return backend, storage.Path{}, nil
}

// WithOptions returns the default log store over store.
func (f *Factory) WithOptions(store storage.ObjectStore, location *url.URL, opts storage.StorageOptions) (logstore.LogStore, error) {
	return logstore.NewDefaultLogStore(store, logstore.Config{Location: location, Options: opts}), nil
}

// DefaultClientFactory builds the native client for u:
//   - a localClient when hdfs_fuse_mount is set
//   - a viewfsClient for viewfs URLs, routing to one RPC client per mount target
//   - an rpcClient otherwise
func DefaultClientFactory(_ context.Context, u *url.URL, opts Options) (Client, error) {
	if opts.FuseMount != "" {
		return NewLocalClient(opts.FuseMount)
	}

	conf, err := loadHadoopConf(opts)
	if err != nil {
		return nil, err
	}

	if registry.Key(u.Scheme) == SchemeViewFS {
		noOverride := opts
		noOverride.Namenodes = nil
		client, err := newViewFSClient(u, conf, func(target *url.URL) (Client, error) {
			return newRPCClient(target, noOverride, conf)
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := newRPCClient(u, opts, conf)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// RegisterHandlers registers one Factory for the hdfs and viewfs schemes,
// plus additional, in both the object store and the log store registries.
//
// Registration replaces any previous entry, so calling it more than once
// is harmless.
func RegisterHandlers(additional ...string) {
	f := NewFactory(additional...)
	for scheme := range f.schemes {
		if err := storage.Factories().Insert(scheme, f); err != nil {
			logger.Error("Failed to register %s object store factory: %v", scheme, err)
			continue
		}
		if err := logstore.LogStores().Insert(scheme, f); err != nil {
			logger.Error("Failed to register %s log store factory: %v", scheme, err)
		}
	}
	logger.Debug("Registered %s handlers for schemes %v", StoreName, f.SchemesList())
}

// SchemesList returns the schemes served by f.
func (f *Factory) SchemesList() []string {
	out := make([]string, 0, len(f.schemes))
	for _, s := range Schemes {
		if f.schemes[s] {
			out = append(out, s)
		}
	}
	var extra []string
	for s := range f.schemes {
		if s != SchemeHDFS && s != SchemeViewFS {
			extra = append(extra, s)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (f *Factory) String() string {
	return fmt.Sprintf("HdfsFactory%v", f.SchemesList())
}
