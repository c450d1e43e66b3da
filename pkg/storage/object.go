package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"
)

// ObjectMeta describes a stored object.
//
// ObjectMeta is a value type: every read returns a fresh copy that the
// caller owns.
type ObjectMeta struct {
	// Location is the logical path of the object
	Location Path

	// LastModified is the last modification time reported by the backend
	LastModified time.Time

	// Size is the object size in bytes
	Size int64

	// ETag is an opaque identifier of the object contents, if the backend has one
	ETag string

	// Version is a backend version identifier, if the backend has one
	Version string
}

// PutMode selects the write semantics of PutOpts.
type PutMode int

const (
	// PutModeOverwrite replaces any existing object
	PutModeOverwrite PutMode = iota

	// PutModeCreate fails with ErrAlreadyExists if the object exists
	PutModeCreate

	// PutModeUpdate replaces the object only if its ETag matches
	// PutOptions.ETag, failing with ErrPrecondition otherwise
	PutModeUpdate
)

func (m PutMode) String() string {
	switch m {
	case PutModeOverwrite:
		return "overwrite"
	case PutModeCreate:
		return "create"
	case PutModeUpdate:
		return "update"
	default:
		return fmt.Sprintf("PutMode(%d)", int(m))
	}
}

// PutOptions configures PutOpts.
type PutOptions struct {
	Mode PutMode

	// ETag is the expected current ETag for PutModeUpdate
	ETag string
}

// PutResult is returned by a successful write.
type PutResult struct {
	ETag    string
	Version string
}

// PutMultipartOptions configures PutMultipartOpts.
type PutMultipartOptions struct {
	// Attributes are backend-specific object attributes (content type, etc.)
	Attributes map[string]string
}

// MultipartUpload is an in-progress multipart write.
//
// Parts are numbered from zero in the order PutPart is called. Nothing is
// visible at the destination until Complete returns.
type MultipartUpload interface {
	// PutPart uploads the next part.
	PutPart(ctx context.Context, data []byte) error

	// Complete assembles the uploaded parts into the destination object.
	Complete(ctx context.Context) (PutResult, error)

	// Abort discards the uploaded parts.
	Abort(ctx context.Context) error
}

type rangeKind int

const (
	rangeBounded rangeKind = iota + 1
	rangeOffset
	rangeSuffix
)

// GetRange is a byte range request.
//
// The zero value requests the whole object.
type GetRange struct {
	kind  rangeKind
	start int64
	end   int64
}

// Bounded requests the half-open byte range [start, end).
func Bounded(start, end int64) GetRange {
	return GetRange{kind: rangeBounded, start: start, end: end}
}

// Offset requests every byte from start to the end of the object.
func Offset(start int64) GetRange {
	return GetRange{kind: rangeOffset, start: start}
}

// Suffix requests the last n bytes of the object.
func Suffix(n int64) GetRange {
	return GetRange{kind: rangeSuffix, start: n}
}

// IsZero reports whether r requests the whole object.
func (r GetRange) IsZero() bool {
	return r.kind == 0
}

// Resolve converts r into an absolute [start, end) range for an object of
// size bytes.
//
// A bounded range fails with ErrRangeNotSatisfiable when start > end or end
// exceeds size. An offset range fails when start exceeds size. A suffix
// longer than the object is clamped to the whole object.
func (r GetRange) Resolve(size int64) (start, end int64, err error) {
	switch r.kind {
	case 0:
		return 0, size, nil
	case rangeBounded:
		if r.start < 0 || r.start > r.end {
			return 0, 0, &StorageError{Code: ErrRangeNotSatisfiable, Err: fmt.Errorf("invalid range %d-%d", r.start, r.end)}
		}
		if r.end > size {
			return 0, 0, &StorageError{Code: ErrRangeNotSatisfiable, Err: fmt.Errorf("range %d-%d exceeds object size %d", r.start, r.end, size)}
		}
		return r.start, r.end, nil
	case rangeOffset:
		if r.start < 0 || r.start > size {
			return 0, 0, &StorageError{Code: ErrRangeNotSatisfiable, Err: fmt.Errorf("offset %d exceeds object size %d", r.start, size)}
		}
		return r.start, size, nil
	case rangeSuffix:
		if r.start < 0 {
			return 0, 0, &StorageError{Code: ErrRangeNotSatisfiable, Err: fmt.Errorf("invalid suffix length %d", r.start)}
		}
		if r.start >= size {
			return 0, size, nil
		}
		return size - r.start, size, nil
	}
	return 0, 0, fmt.Errorf("unknown range kind %d", r.kind)
}

// HTTPHeader renders r as an HTTP Range header value ("bytes=0-99").
// The zero range renders as "".
func (r GetRange) HTTPHeader() string {
	switch r.kind {
	case rangeBounded:
		if r.end == r.start {
			// HTTP cannot express an empty range.
			return ""
		}
		return fmt.Sprintf("bytes=%d-%d", r.start, r.end-1)
	case rangeOffset:
		return fmt.Sprintf("bytes=%d-", r.start)
	case rangeSuffix:
		return fmt.Sprintf("bytes=-%d", r.start)
	}
	return ""
}

func (r GetRange) String() string {
	switch r.kind {
	case rangeBounded:
		return fmt.Sprintf("%d..%d", r.start, r.end)
	case rangeOffset:
		return fmt.Sprintf("%d..", r.start)
	case rangeSuffix:
		return fmt.Sprintf("-%d", r.start)
	}
	return ".."
}

// GetOptions configures GetOpts.
type GetOptions struct {
	// IfMatch requires the object ETag to equal this value ("*" matches any)
	IfMatch string

	// IfNoneMatch fails with ErrNotModified if the ETag equals this value
	IfNoneMatch string

	// IfModifiedSince fails with ErrNotModified unless the object changed after this time
	IfModifiedSince time.Time

	// IfUnmodifiedSince fails with ErrPrecondition if the object changed after this time
	IfUnmodifiedSince time.Time

	// Range restricts the returned bytes
	Range GetRange

	// Head requests metadata only; GetResult.Body is nil
	Head bool
}

// CheckPreconditions evaluates the conditional fields of opts against meta.
func (opts GetOptions) CheckPreconditions(meta ObjectMeta) error {
	loc := meta.Location.String()
	if opts.IfMatch != "" && opts.IfMatch != "*" && opts.IfMatch != meta.ETag {
		return &StorageError{Code: ErrPrecondition, Path: loc, Err: fmt.Errorf("etag %q does not match %q", meta.ETag, opts.IfMatch)}
	}
	if !opts.IfUnmodifiedSince.IsZero() && meta.LastModified.After(opts.IfUnmodifiedSince) {
		return &StorageError{Code: ErrPrecondition, Path: loc, Err: fmt.Errorf("modified at %s", meta.LastModified.Format(time.RFC3339))}
	}
	if opts.IfNoneMatch != "" && (opts.IfNoneMatch == "*" || opts.IfNoneMatch == meta.ETag) {
		return &StorageError{Code: ErrNotModified, Path: loc, Err: fmt.Errorf("etag %q matches", meta.ETag)}
	}
	if !opts.IfModifiedSince.IsZero() && !meta.LastModified.After(opts.IfModifiedSince) {
		return &StorageError{Code: ErrNotModified, Path: loc, Err: fmt.Errorf("not modified since %s", opts.IfModifiedSince.Format(time.RFC3339))}
	}
	return nil
}

// GetResult is returned by Get and GetOpts.
//
// The caller must close Body when it is non-nil.
type GetResult struct {
	Meta ObjectMeta

	// Start and End delimit the returned byte range [Start, End)
	Start int64
	End   int64

	Body io.ReadCloser
}

// Bytes reads the whole body and closes it.
func (r *GetResult) Bytes() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	buf := bytes.NewBuffer(make([]byte, 0, r.End-r.Start))
	if _, err := io.Copy(buf, r.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ListResult is returned by ListWithDelimiter.
type ListResult struct {
	// CommonPrefixes are the sub-directories directly below the prefix
	CommonPrefixes []Path

	// Objects are the objects directly below the prefix
	Objects []ObjectMeta
}
