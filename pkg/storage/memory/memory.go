package memory

import (
	"bytes"
	"context"
	"io"
	"iter"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/tablestore/pkg/storage"
)

// StoreName identifies the in-memory backend in errors and logs.
const StoreName = "InMemory"

// MemoryStore implements storage.ObjectStore using in-memory storage.
//
// This implementation stores all objects in memory using a map. It's designed for:
//   - Testing and development
//   - Ephemeral tables that do not need to survive the process
//
// Characteristics:
//   - Fast: All operations are memory-speed
//   - Volatile: Data lost on restart
//   - Thread-safe: Protected by RWMutex
//   - Full-featured: Supports every PutMode, conditional reads and multipart
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Conditional operations
// perform their existence check and their mutation under a single write
// lock, which makes them linearizable. Data is copied on read and write to
// prevent races with caller-owned buffers.
type MemoryStore struct {
	// objects stores the object contents keyed by canonical path
	objects map[string]*entry

	// version is a monotonic counter used to derive ETags
	version uint64

	// mu protects concurrent access to objects and version
	mu sync.RWMutex
}

type entry struct {
	data     []byte
	modified time.Time
	version  uint64
}

func (e *entry) meta(location storage.Path) storage.ObjectMeta {
	return storage.ObjectMeta{
		Location:     location,
		LastModified: e.modified,
		Size:         int64(len(e.data)),
		ETag:         strconv.FormatUint(e.version, 10),
	}
}

// NewMemoryStore creates a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*entry),
	}
}

func (s *MemoryStore) String() string {
	return StoreName
}

func notFound(location storage.Path) error {
	return storage.NewError(storage.ErrNotFound, StoreName, location.String(), nil)
}

// insertLocked stores a copy of data at key. The caller holds the write lock.
func (s *MemoryStore) insertLocked(key string, data []byte) *entry {
	s.version++
	e := &entry{
		data:     bytes.Clone(data),
		modified: time.Now().UTC(),
		version:  s.version,
	}
	if e.data == nil {
		e.data = []byte{}
	}
	s.objects[key] = e
	return e
}

// ============================================================================
// Write Operations
// ============================================================================

func (s *MemoryStore) Put(ctx context.Context, location storage.Path, payload []byte) (storage.PutResult, error) {
	return s.PutOpts(ctx, location, payload, storage.PutOptions{})
}

func (s *MemoryStore) PutOpts(ctx context.Context, location storage.Path, payload []byte, opts storage.PutOptions) (storage.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.PutResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := location.String()
	existing, exists := s.objects[key]

	switch opts.Mode {
	case storage.PutModeCreate:
		if exists {
			return storage.PutResult{}, storage.NewError(storage.ErrAlreadyExists, StoreName, key, nil)
		}
	case storage.PutModeUpdate:
		if !exists {
			return storage.PutResult{}, notFound(location)
		}
		if current := existing.meta(location).ETag; current != opts.ETag {
			return storage.PutResult{}, storage.Errorf(storage.ErrPrecondition, StoreName, key, "etag %q does not match %q", current, opts.ETag)
		}
	}

	e := s.insertLocked(key, payload)
	return storage.PutResult{ETag: e.meta(location).ETag}, nil
}

func (s *MemoryStore) Delete(ctx context.Context, location storage.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := location.String()
	if _, exists := s.objects[key]; !exists {
		return notFound(location)
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) Copy(ctx context.Context, from, to storage.Path) error {
	return s.copy(ctx, from, to, false)
}

func (s *MemoryStore) CopyIfNotExists(ctx context.Context, from, to storage.Path) error {
	return s.copy(ctx, from, to, true)
}

func (s *MemoryStore) copy(ctx context.Context, from, to storage.Path, exclusive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, exists := s.objects[from.String()]
	if !exists {
		return notFound(from)
	}
	if _, taken := s.objects[to.String()]; taken && exclusive {
		return storage.NewError(storage.ErrAlreadyExists, StoreName, to.String(), nil)
	}
	s.insertLocked(to.String(), src.data)
	return nil
}

func (s *MemoryStore) RenameIfNotExists(ctx context.Context, from, to storage.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	src, exists := s.objects[from.String()]
	if !exists {
		return notFound(from)
	}
	if _, taken := s.objects[to.String()]; taken {
		return storage.NewError(storage.ErrAlreadyExists, StoreName, to.String(), nil)
	}
	s.objects[to.String()] = src
	delete(s.objects, from.String())
	return nil
}

// ============================================================================
// Read Operations
// ============================================================================

func (s *MemoryStore) Get(ctx context.Context, location storage.Path) (*storage.GetResult, error) {
	return s.GetOpts(ctx, location, storage.GetOptions{})
}

func (s *MemoryStore) GetOpts(ctx context.Context, location storage.Path, opts storage.GetOptions) (*storage.GetResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, exists := s.objects[location.String()]
	if !exists {
		s.mu.RUnlock()
		return nil, notFound(location)
	}
	meta := e.meta(location)
	data := e.data
	s.mu.RUnlock()

	if err := opts.CheckPreconditions(meta); err != nil {
		return nil, err
	}

	start, end, err := opts.Range.Resolve(meta.Size)
	if err != nil {
		return nil, err
	}

	res := &storage.GetResult{Meta: meta, Start: start, End: end}
	if !opts.Head {
		// Callers own the returned bytes.
		res.Body = io.NopCloser(bytes.NewReader(bytes.Clone(data[start:end])))
	}
	return res, nil
}

func (s *MemoryStore) GetRange(ctx context.Context, location storage.Path, r storage.GetRange) ([]byte, error) {
	res, err := s.GetOpts(ctx, location, storage.GetOptions{Range: r})
	if err != nil {
		return nil, err
	}
	return res.Bytes()
}

func (s *MemoryStore) Head(ctx context.Context, location storage.Path) (storage.ObjectMeta, error) {
	res, err := s.GetOpts(ctx, location, storage.GetOptions{Head: true})
	if err != nil {
		return storage.ObjectMeta{}, err
	}
	return res.Meta, nil
}

// ============================================================================
// Listing
// ============================================================================

// snapshot returns the metadata of every object below prefix, sorted.
func (s *MemoryStore) snapshot(prefix storage.Path) []storage.ObjectMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var metas []storage.ObjectMeta
	for key, e := range s.objects {
		location := storage.MustParsePath(key)
		if location.HasPrefix(prefix) {
			metas = append(metas, e.meta(location))
		}
	}
	sort.Slice(metas, func(i, j int) bool {
		return storage.Compare(metas[i].Location, metas[j].Location) < 0
	})
	return metas
}

func (s *MemoryStore) List(ctx context.Context, prefix storage.Path) iter.Seq2[storage.ObjectMeta, error] {
	return storage.ListSeq(func(yield func(storage.ObjectMeta) bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, meta := range s.snapshot(prefix) {
			if !yield(meta) {
				return nil
			}
		}
		return nil
	})
}

func (s *MemoryStore) ListWithDelimiter(ctx context.Context, prefix storage.Path) (*storage.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &storage.ListResult{}
	seen := make(map[string]bool)
	depth := len(prefix.Parts())

	for _, meta := range s.snapshot(prefix) {
		parts := meta.Location.Parts()
		switch {
		case len(parts) == depth+1:
			res.Objects = append(res.Objects, meta)
		case len(parts) > depth+1:
			common := prefix.Child(parts[depth])
			if !seen[common.String()] {
				seen[common.String()] = true
				res.CommonPrefixes = append(res.CommonPrefixes, common)
			}
		}
	}
	return res, nil
}
