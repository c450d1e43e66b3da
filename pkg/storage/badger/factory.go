package badger

import (
	"context"
	"fmt"
	"net/url"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/registry"
	"github.com/marmos91/tablestore/pkg/storage"
)

// Scheme is the URL scheme of the badger backend: badger:///<dir>.
const Scheme = "badger"

// inMemoryTableSize is the memtable size of in-memory databases, which are
// used for tests and scratch tables.
const inMemoryTableSize = 16 << 20

// Options are the badger-specific storage options.
type Options struct {
	// InMemory keeps the whole database in memory; the URL path is ignored
	InMemory bool `mapstructure:"badger_in_memory"`

	// SyncWrites fsyncs every commit before it returns
	SyncWrites bool `mapstructure:"badger_sync_writes"`
}

// ParseOptions decodes the badger options out of opts.
func ParseOptions(opts storage.StorageOptions) (Options, error) {
	var o Options
	if err := opts.Decode(&o); err != nil {
		return Options{}, err
	}
	return o, nil
}

// Open opens (or creates) the database in dir.
func Open(dir string, o Options) (*BadgerStore, error) {
	var opts badger.Options
	if o.InMemory {
		opts = badger.DefaultOptions("").
			WithInMemory(true).
			WithMemTableSize(inMemoryTableSize)
	} else {
		opts = badger.DefaultOptions(dir)
	}

	opts = opts.
		WithSyncWrites(o.SyncWrites).
		WithCompression(options.None).
		WithLogger(badgerLogger{}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s(%s)", StoreName, dir)
	if o.InMemory {
		name = StoreName + "(in-memory)"
	}
	logger.Debug("Badger object store opened: %s", name)
	return &BadgerStore{db: db, name: name}, nil
}

// Factory opens a BadgerStore for every badger:// URL.
//
// The URL path names the database directory. The store is rooted at the
// database root, so the returned root Path is always empty.
type Factory struct{}

func (Factory) ParseURLOpts(ctx context.Context, u *url.URL, opts storage.StorageOptions) (storage.ObjectStore, storage.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Path{}, err
	}
	if registry.Key(u.Scheme) != Scheme {
		return nil, storage.Path{}, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "unsupported scheme %q", u.Scheme)
	}
	if u.Opaque != "" || u.Host != "" {
		return nil, storage.Path{}, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "expected badger:///<dir>")
	}

	o, err := ParseOptions(opts)
	if err != nil {
		return nil, storage.Path{}, storage.NewError(storage.ErrConstructionFailure, StoreName, u.String(), err)
	}
	if u.Path == "" && !o.InMemory {
		return nil, storage.Path{}, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "no database directory")
	}

	store, err := Open(u.Path, o)
	if err != nil {
		return nil, storage.Path{}, storage.NewError(storage.ErrConstructionFailure, StoreName, u.String(), err)
	}
	return store, storage.Path{}, nil
}

func (Factory) WithOptions(store storage.ObjectStore, location *url.URL, opts storage.StorageOptions) (logstore.LogStore, error) {
	return logstore.NewDefaultLogStore(store, logstore.Config{Location: location, Options: opts}), nil
}

// RegisterHandlers registers the badger backend in both global registries.
func RegisterHandlers() {
	f := Factory{}
	if err := storage.Factories().Insert(Scheme, f); err != nil {
		logger.Error("Failed to register %s object store factory: %v", Scheme, err)
	}
	if err := logstore.LogStores().Insert(Scheme, f); err != nil {
		logger.Error("Failed to register %s log store factory: %v", Scheme, err)
	}
	logger.Debug("Registered %s handlers for scheme %s", StoreName, Scheme)
}
