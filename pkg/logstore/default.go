package logstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/storage"
)

// DefaultLogStoreName is the Name of DefaultLogStore.
const DefaultLogStoreName = "DefaultLogStore"

// DefaultLogStore is the log store used by backends whose ObjectStore
// provides an atomic RenameIfNotExists. It needs no external coordination.
type DefaultLogStore struct {
	store  storage.ObjectStore
	config Config
}

// NewDefaultLogStore creates a log store over store.
func NewDefaultLogStore(store storage.ObjectStore, config Config) *DefaultLogStore {
	if config.Options == nil {
		config.Options = storage.StorageOptions{}
	}
	return &DefaultLogStore{store: store, config: config}
}

func (l *DefaultLogStore) Name() string {
	return DefaultLogStoreName
}

func (l *DefaultLogStore) ReadCommitEntry(ctx context.Context, version int64) ([]byte, error) {
	res, err := l.store.Get(ctx, CommitPath(version))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("version %d: %w", version, ErrCommitNotFound)
		}
		return nil, fmt.Errorf("failed to read commit %d: %w", version, err)
	}
	data, err := res.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %d: %w", version, err)
	}
	return data, nil
}

func (l *DefaultLogStore) WriteCommitEntry(ctx context.Context, version int64, tmp storage.Path) error {
	err := l.store.RenameIfNotExists(ctx, tmp, CommitPath(version))
	switch {
	case err == nil:
		logger.Debug("Committed version %d to %s", version, l.RootURI())
		return nil
	case errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("version %d: %w", version, ErrVersionAlreadyExists)
	default:
		return fmt.Errorf("failed to commit version %d: %w", version, err)
	}
}

func (l *DefaultLogStore) AbortCommitEntry(ctx context.Context, _ int64, tmp storage.Path) error {
	return l.store.Delete(ctx, tmp)
}

func (l *DefaultLogStore) GetLatestVersion(ctx context.Context, start int64) (int64, error) {
	latest := int64(-1)
	for meta, err := range l.store.List(ctx, LogDir) {
		if err != nil {
			return 0, fmt.Errorf("failed to list %s: %w", LogDir, err)
		}
		if v, ok := ParseCommitVersion(meta.Location); ok && v >= start && v > latest {
			latest = v
		}
	}
	if latest < 0 {
		return 0, fmt.Errorf("%s: %w", l.RootURI(), ErrNotATable)
	}
	return latest, nil
}

func (l *DefaultLogStore) IsTableLocation(ctx context.Context) (bool, error) {
	for meta, err := range l.store.List(ctx, LogDir) {
		if err != nil {
			return false, fmt.Errorf("failed to list %s: %w", LogDir, err)
		}
		if _, ok := ParseCommitVersion(meta.Location); ok {
			return true, nil
		}
	}
	return false, nil
}

func (l *DefaultLogStore) ObjectStore() storage.ObjectStore {
	return l.store
}

func (l *DefaultLogStore) RootURI() string {
	if l.config.Location == nil {
		return ""
	}
	return l.config.Location.String()
}

func (l *DefaultLogStore) Config() Config {
	return l.config
}
