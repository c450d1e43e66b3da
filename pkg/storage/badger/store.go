package badger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/storage"
)

// StoreName identifies the badger backend in errors and logs.
const StoreName = "BadgerObjectStore"

// maxTxnAttempts bounds how often a check-and-act transaction is retried
// after losing an optimistic conflict.
const maxTxnAttempts = 16

// BadgerStore implements storage.ObjectStore on top of an embedded BadgerDB.
//
// Objects live under the "o/" key prefix (see codec.go). Every operation
// is a single Badger transaction.
//
// Conditional Operations:
// PutModeCreate, PutModeUpdate, CopyIfNotExists and RenameIfNotExists read
// the keys they depend on inside the writing transaction. Badger detects a
// concurrent commit to any of those keys and fails the transaction with
// badger.ErrConflict, in which case the whole check-and-act is evaluated
// again. Among concurrent writers racing for an absent destination exactly
// one commits.
//
// Thread Safety:
// BadgerDB is safe for concurrent use; the store holds no other state.
type BadgerStore struct {
	db   *badger.DB
	name string
}

func (s *BadgerStore) String() string {
	return s.name
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func mapError(err error, location storage.Path) error {
	if err == nil {
		return nil
	}
	var se *storage.StorageError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.NewError(storage.ErrNotFound, StoreName, location.String(), nil)
	}
	return storage.NewError(storage.ErrIO, StoreName, location.String(), err)
}

// update runs fn in a read-write transaction, re-running it when the
// transaction loses an optimistic conflict.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 1; attempt <= maxTxnAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		logger.Debug("Badger transaction conflict, attempt %d/%d", attempt, maxTxnAttempts)
	}
	return err
}

// getObject reads the header and a copy of the payload stored at location.
func getObject(txn *badger.Txn, location storage.Path) (header, []byte, *badger.Item, error) {
	item, err := txn.Get(keyObject(location))
	if err != nil {
		return header{}, nil, nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return header{}, nil, nil, err
	}
	h, payload, err := decodeValue(val)
	if err != nil {
		return header{}, nil, nil, err
	}
	return h, payload, item, nil
}

func exists(txn *badger.Txn, location storage.Path) (bool, error) {
	_, err := txn.Get(keyObject(location))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

func objectMeta(location storage.Path, h header, size int, item *badger.Item) storage.ObjectMeta {
	return storage.ObjectMeta{
		Location:     location,
		LastModified: h.modified,
		Size:         int64(size),
		ETag:         h.ETag(),
		Version:      strconv.FormatUint(item.Version(), 10),
	}
}

// ============================================================================
// Write Operations
// ============================================================================

func (s *BadgerStore) Put(ctx context.Context, location storage.Path, payload []byte) (storage.PutResult, error) {
	return s.PutOpts(ctx, location, payload, storage.PutOptions{})
}

func (s *BadgerStore) PutOpts(ctx context.Context, location storage.Path, payload []byte, opts storage.PutOptions) (storage.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.PutResult{}, err
	}
	if location.IsRoot() {
		return storage.PutResult{}, storage.Errorf(storage.ErrInvalidPath, StoreName, "", "cannot write to the root")
	}

	var h header
	err := s.update(ctx, func(txn *badger.Txn) error {
		switch opts.Mode {
		case storage.PutModeOverwrite:
		case storage.PutModeCreate:
			found, err := exists(txn, location)
			if err != nil {
				return err
			}
			if found {
				return storage.NewError(storage.ErrAlreadyExists, StoreName, location.String(), nil)
			}
		case storage.PutModeUpdate:
			current, _, _, err := getObject(txn, location)
			if err != nil {
				return err
			}
			if current.ETag() != opts.ETag {
				return storage.Errorf(storage.ErrPrecondition, StoreName, location.String(), "etag %q does not match %q", current.ETag(), opts.ETag)
			}
		default:
			return storage.Errorf(storage.ErrNotSupported, StoreName, location.String(), "unknown put mode %s", opts.Mode)
		}

		h = newHeader()
		return txn.Set(keyObject(location), encodeValue(h, payload))
	})
	if err != nil {
		return storage.PutResult{}, mapError(err, location)
	}
	return storage.PutResult{ETag: h.ETag()}, nil
}

func (s *BadgerStore) Delete(ctx context.Context, location storage.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(keyObject(location)); err != nil {
			return err
		}
		return txn.Delete(keyObject(location))
	})
	return mapError(err, location)
}

// ============================================================================
// Read Operations
// ============================================================================

func (s *BadgerStore) Get(ctx context.Context, location storage.Path) (*storage.GetResult, error) {
	return s.GetOpts(ctx, location, storage.GetOptions{})
}

func (s *BadgerStore) GetOpts(ctx context.Context, location storage.Path, opts storage.GetOptions) (*storage.GetResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		meta    storage.ObjectMeta
		payload []byte
	)
	err := s.db.View(func(txn *badger.Txn) error {
		h, data, item, err := getObject(txn, location)
		if err != nil {
			return err
		}
		meta = objectMeta(location, h, len(data), item)
		payload = data
		return nil
	})
	if err != nil {
		return nil, mapError(err, location)
	}

	if err := opts.CheckPreconditions(meta); err != nil {
		return nil, err
	}
	start, end, err := opts.Range.Resolve(meta.Size)
	if err != nil {
		return nil, storage.NewError(storage.ErrRangeNotSatisfiable, StoreName, location.String(), err)
	}

	res := &storage.GetResult{Meta: meta, Start: start, End: end}
	if !opts.Head {
		res.Body = io.NopCloser(bytes.NewReader(payload[start:end]))
	}
	return res, nil
}

func (s *BadgerStore) GetRange(ctx context.Context, location storage.Path, r storage.GetRange) ([]byte, error) {
	res, err := s.GetOpts(ctx, location, storage.GetOptions{Range: r})
	if err != nil {
		return nil, err
	}
	return res.Bytes()
}

func (s *BadgerStore) Head(ctx context.Context, location storage.Path) (storage.ObjectMeta, error) {
	res, err := s.GetOpts(ctx, location, storage.GetOptions{Head: true})
	if err != nil {
		return storage.ObjectMeta{}, err
	}
	return res.Meta, nil
}

// ============================================================================
// Listing
// ============================================================================

// scan iterates the objects at or below prefix in key order inside a single
// read transaction. It stops when fn returns false.
func (s *BadgerStore) scan(ctx context.Context, prefix storage.Path, fn func(storage.ObjectMeta) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		scanPrefix := keyScan(prefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = scanPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(scanPrefix); it.ValidForPrefix(scanPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			item := it.Item()
			location, err := pathFromKey(item.Key())
			if err != nil {
				return err
			}
			if !location.HasPrefix(prefix) {
				continue
			}

			var meta storage.ObjectMeta
			err = item.Value(func(val []byte) error {
				h, payload, err := decodeValue(val)
				if err != nil {
					return err
				}
				meta = objectMeta(location, h, len(payload), item)
				return nil
			})
			if err != nil {
				return err
			}
			if !fn(meta) {
				return nil
			}
		}
		return nil
	})
}

// List walks the keys below prefix lazily: the read transaction stays open
// only while the caller keeps iterating.
func (s *BadgerStore) List(ctx context.Context, prefix storage.Path) iter.Seq2[storage.ObjectMeta, error] {
	return storage.ListSeq(func(yield func(storage.ObjectMeta) bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.scan(ctx, prefix, yield); err != nil {
			return mapError(err, prefix)
		}
		return nil
	})
}

func (s *BadgerStore) ListWithDelimiter(ctx context.Context, prefix storage.Path) (*storage.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &storage.ListResult{}
	seen := make(map[string]bool)
	depth := len(prefix.Parts())

	err := s.scan(ctx, prefix, func(meta storage.ObjectMeta) bool {
		parts := meta.Location.Parts()
		switch {
		case len(parts) == depth:
			// The prefix itself is an object, not a directory.
		case len(parts) == depth+1:
			res.Objects = append(res.Objects, meta)
		default:
			child := prefix.Child(parts[depth])
			if !seen[child.String()] {
				seen[child.String()] = true
				res.CommonPrefixes = append(res.CommonPrefixes, child)
			}
		}
		return true
	})
	if err != nil {
		return nil, mapError(err, prefix)
	}
	return res, nil
}

// ============================================================================
// Copy and Rename
// ============================================================================

func (s *BadgerStore) Copy(ctx context.Context, from, to storage.Path) error {
	return s.copy(ctx, from, to, false)
}

func (s *BadgerStore) CopyIfNotExists(ctx context.Context, from, to storage.Path) error {
	return s.copy(ctx, from, to, true)
}

func (s *BadgerStore) copy(ctx context.Context, from, to storage.Path, exclusive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		_, payload, _, err := getObject(txn, from)
		if err != nil {
			return mapError(err, from)
		}
		if exclusive {
			found, err := exists(txn, to)
			if err != nil {
				return err
			}
			if found {
				return storage.NewError(storage.ErrAlreadyExists, StoreName, to.String(), nil)
			}
		}
		return txn.Set(keyObject(to), encodeValue(newHeader(), payload))
	})
	return mapError(err, to)
}

// RenameIfNotExists moves from onto to in one transaction: the destination
// is written and the source deleted atomically.
func (s *BadgerStore) RenameIfNotExists(ctx context.Context, from, to storage.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.update(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(keyObject(from))
		if err != nil {
			return mapError(err, from)
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		found, err := exists(txn, to)
		if err != nil {
			return err
		}
		if found {
			return storage.NewError(storage.ErrAlreadyExists, StoreName, to.String(), nil)
		}

		if err := txn.Set(keyObject(to), val); err != nil {
			return err
		}
		return txn.Delete(keyObject(from))
	})
	return mapError(err, to)
}

// PutMultipartOpts buffers parts in memory and writes them with a single
// Put on Complete.
func (s *BadgerStore) PutMultipartOpts(ctx context.Context, location storage.Path, _ storage.PutMultipartOptions) (storage.MultipartUpload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if location.IsRoot() {
		return nil, storage.Errorf(storage.ErrInvalidPath, StoreName, "", "cannot write to the root")
	}
	return &multipartUpload{store: s, location: location}, nil
}
