package storage

import (
	"context"
	"iter"
)

// ============================================================================
// ObjectStore Interface
// ============================================================================

// ObjectStore is the generic object storage contract used by the table engine.
//
// Implementations map these operations onto a concrete backend (HDFS, S3,
// an embedded database, memory). All locations are logical Paths relative
// to the root the store was created for.
//
// Error Handling:
// Every failure is a *StorageError. Callers classify failures with
// errors.Is against the ErrorCode values (ErrNotFound, ErrAlreadyExists, ...).
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// The conditional operations (PutOpts with PutModeCreate, CopyIfNotExists,
// RenameIfNotExists) must be linearizable per destination: among concurrent
// callers targeting the same absent destination at most one succeeds and
// every other caller observes ErrAlreadyExists.
type ObjectStore interface {
	// Put writes payload to location, replacing any existing object.
	Put(ctx context.Context, location Path, payload []byte) (PutResult, error)

	// PutOpts writes payload to location with the semantics of opts.Mode.
	//
	// Returns ErrAlreadyExists for PutModeCreate when the object exists and
	// ErrPrecondition for PutModeUpdate when the ETag does not match.
	PutOpts(ctx context.Context, location Path, payload []byte, opts PutOptions) (PutResult, error)

	// PutMultipartOpts starts a multipart write to location.
	// Backends without multipart support return ErrNotSupported.
	PutMultipartOpts(ctx context.Context, location Path, opts PutMultipartOptions) (MultipartUpload, error)

	// Get returns the full object at location.
	Get(ctx context.Context, location Path) (*GetResult, error)

	// GetOpts returns the object at location subject to opts.
	GetOpts(ctx context.Context, location Path, opts GetOptions) (*GetResult, error)

	// GetRange returns exactly the bytes of r.
	// Returns ErrRangeNotSatisfiable if r does not fit in the object.
	GetRange(ctx context.Context, location Path, r GetRange) ([]byte, error)

	// Head returns the metadata of the object at location.
	Head(ctx context.Context, location Path) (ObjectMeta, error)

	// Delete removes the object at location.
	// Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, location Path) error

	// List enumerates every object at or below prefix, recursively.
	//
	// The sequence is lazy: the backend is queried as iteration proceeds.
	// It can be ranged over more than once; each range restarts the listing.
	// A missing prefix yields an empty sequence. Iteration stops after the
	// first error.
	List(ctx context.Context, prefix Path) iter.Seq2[ObjectMeta, error]

	// ListWithDelimiter lists the objects and common prefixes directly below prefix.
	ListWithDelimiter(ctx context.Context, prefix Path) (*ListResult, error)

	// Copy copies from to to, replacing any existing object at to.
	Copy(ctx context.Context, from, to Path) error

	// CopyIfNotExists copies from to to only if to does not exist.
	// Returns ErrAlreadyExists otherwise, leaving to untouched.
	CopyIfNotExists(ctx context.Context, from, to Path) error

	// RenameIfNotExists moves from to to only if to does not exist.
	//
	// Returns ErrAlreadyExists otherwise, in which case neither object is
	// modified. Returns ErrNotFound if from does not exist.
	RenameIfNotExists(ctx context.Context, from, to Path) error

	// String returns a human-readable description of the store.
	String() string
}

// Collect drains a List sequence into a slice.
func Collect(seq iter.Seq2[ObjectMeta, error]) ([]ObjectMeta, error) {
	var out []ObjectMeta
	for meta, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// ListSeq adapts an eager listing function into a restartable lazy sequence.
//
// fn is invoked each time the sequence is ranged over.
func ListSeq(fn func(yield func(ObjectMeta) bool) error) iter.Seq2[ObjectMeta, error] {
	return func(yield func(ObjectMeta, error) bool) {
		stopped := false
		err := fn(func(meta ObjectMeta) bool {
			if !yield(meta, nil) {
				stopped = true
				return false
			}
			return true
		})
		if err != nil && !stopped {
			yield(ObjectMeta{}, err)
		}
	}
}
