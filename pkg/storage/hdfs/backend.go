package hdfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/storage"
)

const (
	// StoreName identifies the HDFS backend in errors.
	StoreName = "HdfsObjectStore"

	// displayName is the human-readable name of the backend.
	displayName = "HadoopFileStorageBackend"

	stagingSuffix = ".staging"
	dirPerm       = fs.FileMode(0o755)
)

// Backend implements storage.ObjectStore on top of an HDFS (or ViewFS)
// namespace.
//
// Every logical path is resolved against the canonical root directory the
// Backend was created for. Writes are staged in a hidden file next to the
// destination and published with a rename, so readers never observe a
// partially written object.
//
// Conditional Operations:
// RenameIfNotExists, CopyIfNotExists and PutModeCreate publish with
// Client.RenameNoReplace, whose atomicity comes from the filesystem itself.
// The Backend adds no locking of its own.
//
// Thread Safety:
// The Backend holds no mutable state after construction and is safe for
// concurrent use. The Client is shared by all operations.
type Backend struct {
	client Client
	root   *url.URL
}

// NewBackend creates a Backend rooted at the path of u.
//
// The root is canonicalized once through client. When createRoot is set a
// missing root directory is created first. On failure the client is left
// open; the caller owns it.
func NewBackend(client Client, u *url.URL, createRoot bool) (*Backend, error) {
	if createRoot && u.Opaque == "" && u.Path != "" {
		if err := client.MkdirAll(u.Path, dirPerm); err != nil {
			return nil, storage.NewError(storage.ErrConstructionFailure, StoreName, u.String(), fmt.Errorf("failed to create root: %w", err))
		}
	}

	root, err := resolveRoot(client, u)
	if err != nil {
		return nil, err
	}

	logger.Debug("HDFS backend initialized: root=%s", root)
	return &Backend{client: client, root: root}, nil
}

// Root returns the canonical root URL.
func (b *Backend) Root() *url.URL {
	u := *b.root
	return &u
}

func (b *Backend) String() string {
	return fmt.Sprintf("%s(%s)", displayName, b.root)
}

// Close releases the native client.
func (b *Backend) Close() error {
	return b.client.Close()
}

func (b *Backend) abs(location storage.Path) string {
	return pathToFilesystem(b.root, location)
}

func (b *Backend) objectMeta(location storage.Path, info fs.FileInfo) storage.ObjectMeta {
	return storage.ObjectMeta{
		Location:     location,
		LastModified: info.ModTime().UTC(),
		Size:         info.Size(),
		ETag:         etag(info),
	}
}

// etag derives an ETag from modification time and size; HDFS exposes no
// content hash through the file status.
func etag(info fs.FileInfo) string {
	return fmt.Sprintf("%x-%x", info.ModTime().UnixNano(), info.Size())
}

// stagingPath names a hidden file .<base>.<uuid>.staging beside abs.
func stagingPath(abs string) string {
	return hiddenPath(abs, uuid.New())
}

func hiddenPath(abs string, id uuid.UUID) string {
	dir, base := path.Split(abs)
	return dir + "." + base + "." + id.String() + stagingSuffix
}

// isStaging reports whether name follows the .<base>.<uuid>.staging
// pattern of staging and lock files. Other dot files are regular objects.
func isStaging(name string) bool {
	rest, ok := strings.CutPrefix(name, ".")
	if !ok {
		return false
	}
	rest, ok = strings.CutSuffix(rest, stagingSuffix)
	if !ok {
		return false
	}
	base, id, ok := cutLast(rest, ".")
	if !ok || base == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func notFound(location storage.Path, err error) error {
	return storage.NewError(storage.ErrNotFound, StoreName, location.String(), err)
}

// ============================================================================
// Write Operations
// ============================================================================

func (b *Backend) Put(ctx context.Context, location storage.Path, payload []byte) (storage.PutResult, error) {
	return b.PutOpts(ctx, location, payload, storage.PutOptions{})
}

// PutOpts writes payload with the semantics of opts.Mode.
//
// PutModeUpdate is not supported: HDFS has no compare-and-swap on file
// contents.
func (b *Backend) PutOpts(ctx context.Context, location storage.Path, payload []byte, opts storage.PutOptions) (storage.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.PutResult{}, err
	}
	if location.IsRoot() {
		return storage.PutResult{}, storage.Errorf(storage.ErrInvalidPath, StoreName, "", "cannot write to the root")
	}

	switch opts.Mode {
	case storage.PutModeOverwrite, storage.PutModeCreate:
	case storage.PutModeUpdate:
		return storage.PutResult{}, storage.NotSupported(StoreName, "put with update mode")
	default:
		return storage.PutResult{}, storage.Errorf(storage.ErrNotSupported, StoreName, location.String(), "unknown put mode %s", opts.Mode)
	}

	// ========================================================================
	// Step 1: Stage the payload next to the destination
	// ========================================================================

	abs := b.abs(location)
	tmp, info, err := b.stage(abs, func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	})
	if err != nil {
		return storage.PutResult{}, err
	}

	// ========================================================================
	// Step 2: Publish atomically
	// ========================================================================

	if err := b.publish(tmp, abs, opts.Mode == storage.PutModeCreate); err != nil {
		return storage.PutResult{}, err
	}
	return storage.PutResult{ETag: etag(info)}, nil
}

// stage writes the output of write to a fresh staging file beside abs and
// returns the staging path and its file info. The staging file is removed
// on failure.
func (b *Backend) stage(abs string, write func(io.Writer) error) (string, fs.FileInfo, error) {
	if err := b.client.MkdirAll(path.Dir(abs), dirPerm); err != nil {
		return "", nil, mapError(err, path.Dir(abs))
	}

	tmp := stagingPath(abs)
	w, err := b.client.Create(tmp)
	if err != nil {
		return "", nil, mapError(err, tmp)
	}

	if err := write(w); err != nil {
		_ = w.Close()
		b.discard(tmp)
		return "", nil, mapError(err, tmp)
	}
	if err := w.Close(); err != nil {
		b.discard(tmp)
		return "", nil, mapError(err, tmp)
	}

	info, err := b.client.Stat(tmp)
	if err != nil {
		b.discard(tmp)
		return "", nil, mapError(err, tmp)
	}
	return tmp, info, nil
}

// publish moves a staging file onto its destination.
func (b *Backend) publish(tmp, abs string, exclusive bool) error {
	var err error
	if exclusive {
		err = b.client.RenameNoReplace(tmp, abs)
	} else {
		err = b.client.Rename(tmp, abs)
	}
	if err != nil {
		b.discard(tmp)
		return mapError(err, abs)
	}
	return nil
}

func (b *Backend) discard(tmp string) {
	if err := b.client.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to remove staging file %s: %v", tmp, err)
	}
}

func (b *Backend) Delete(ctx context.Context, location storage.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	abs := b.abs(location)
	info, err := b.client.Stat(abs)
	if err != nil {
		return mapError(err, abs)
	}
	if info.IsDir() {
		return notFound(location, fmt.Errorf("%s is a directory", abs))
	}
	if err := b.client.Remove(abs); err != nil {
		return mapError(err, abs)
	}
	return nil
}

// PutMultipartOpts is not supported by the HDFS backend. It fails
// immediately without touching the filesystem.
func (b *Backend) PutMultipartOpts(_ context.Context, _ storage.Path, _ storage.PutMultipartOptions) (storage.MultipartUpload, error) {
	return nil, storage.NotSupported(StoreName, "put_multipart_opts")
}

// ============================================================================
// Read Operations
// ============================================================================

func (b *Backend) Get(ctx context.Context, location storage.Path) (*storage.GetResult, error) {
	return b.GetOpts(ctx, location, storage.GetOptions{})
}

func (b *Backend) GetOpts(ctx context.Context, location storage.Path, opts storage.GetOptions) (*storage.GetResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs := b.abs(location)
	f, err := b.client.Open(abs)
	if err != nil {
		return nil, mapError(err, abs)
	}

	res, err := b.prepareRead(location, f, opts)
	if err != nil || opts.Head {
		_ = f.Close()
		return res, err
	}

	res.Body = &fileBody{
		SectionReader: io.NewSectionReader(f, res.Start, res.End-res.Start),
		closer:        f,
	}
	return res, nil
}

func (b *Backend) prepareRead(location storage.Path, f File, opts storage.GetOptions) (*storage.GetResult, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, mapError(err, location.String())
	}
	if info.IsDir() {
		return nil, notFound(location, fmt.Errorf("%s is a directory", b.abs(location)))
	}

	meta := b.objectMeta(location, info)
	if err := opts.CheckPreconditions(meta); err != nil {
		return nil, err
	}

	start, end, err := opts.Range.Resolve(meta.Size)
	if err != nil {
		return nil, storage.NewError(storage.ErrRangeNotSatisfiable, StoreName, location.String(), err)
	}
	return &storage.GetResult{Meta: meta, Start: start, End: end}, nil
}

// fileBody streams a byte range of an open file and closes the file with it.
type fileBody struct {
	*io.SectionReader
	closer io.Closer
}

func (b *fileBody) Close() error {
	return b.closer.Close()
}

func (b *Backend) GetRange(ctx context.Context, location storage.Path, r storage.GetRange) ([]byte, error) {
	res, err := b.GetOpts(ctx, location, storage.GetOptions{Range: r})
	if err != nil {
		return nil, err
	}
	data, err := res.Bytes()
	if err != nil {
		return nil, mapError(err, location.String())
	}
	return data, nil
}

func (b *Backend) Head(ctx context.Context, location storage.Path) (storage.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return storage.ObjectMeta{}, err
	}

	abs := b.abs(location)
	info, err := b.client.Stat(abs)
	if err != nil {
		return storage.ObjectMeta{}, mapError(err, abs)
	}
	if info.IsDir() {
		return storage.ObjectMeta{}, notFound(location, fmt.Errorf("%s is a directory", abs))
	}
	return b.objectMeta(location, info), nil
}

// ============================================================================
// Listing
// ============================================================================

// List walks the directory tree below prefix depth-first, reading each
// directory only when iteration reaches it.
func (b *Backend) List(ctx context.Context, prefix storage.Path) iter.Seq2[storage.ObjectMeta, error] {
	return storage.ListSeq(func(yield func(storage.ObjectMeta) bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := b.abs(prefix)
		info, err := b.client.Stat(start)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return mapError(err, start)
		case !info.IsDir():
			if !isStaging(info.Name()) {
				yield(b.objectMeta(prefix, info))
			}
			return nil
		}

		_, err = b.walk(ctx, prefix, start, yield)
		return err
	})
}

// walk yields every file below dir. It returns false once yield asks to stop.
func (b *Backend) walk(ctx context.Context, prefix storage.Path, dir string, yield func(storage.ObjectMeta) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	entries, err := b.client.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Removed while listing.
			return true, nil
		}
		return false, mapError(err, dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		location := prefix.Child(entry.Name())
		if entry.IsDir() {
			more, err := b.walk(ctx, location, path.Join(dir, entry.Name()), yield)
			if err != nil || !more {
				return more, err
			}
			continue
		}
		if isStaging(entry.Name()) {
			continue
		}
		if !yield(b.objectMeta(location, entry)) {
			return false, nil
		}
	}
	return true, nil
}

func (b *Backend) ListWithDelimiter(ctx context.Context, prefix storage.Path) (*storage.ListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &storage.ListResult{}
	dir := b.abs(prefix)

	info, err := b.client.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return res, nil
	case err != nil:
		return nil, mapError(err, dir)
	case !info.IsDir():
		return res, nil
	}

	entries, err := b.client.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, nil
		}
		return nil, mapError(err, dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		location := prefix.Child(entry.Name())
		switch {
		case entry.IsDir():
			res.CommonPrefixes = append(res.CommonPrefixes, location)
		case isStaging(entry.Name()):
		default:
			res.Objects = append(res.Objects, b.objectMeta(location, entry))
		}
	}
	return res, nil
}

// ============================================================================
// Copy and Rename
// ============================================================================

func (b *Backend) Copy(ctx context.Context, from, to storage.Path) error {
	return b.copy(ctx, from, to, false)
}

func (b *Backend) CopyIfNotExists(ctx context.Context, from, to storage.Path) error {
	return b.copy(ctx, from, to, true)
}

// copy streams from into a staging file beside to and publishes it.
func (b *Backend) copy(ctx context.Context, from, to storage.Path, exclusive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, dst := b.abs(from), b.abs(to)
	f, err := b.client.Open(src)
	if err != nil {
		return mapError(err, src)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return mapError(err, src)
	}
	if info.IsDir() {
		return notFound(from, fmt.Errorf("%s is a directory", src))
	}

	if exclusive {
		if _, err := b.client.Stat(dst); err == nil {
			return storage.NewError(storage.ErrAlreadyExists, StoreName, to.String(), nil)
		}
	}

	tmp, _, err := b.stage(dst, func(w io.Writer) error {
		_, err := io.Copy(w, f)
		return err
	})
	if err != nil {
		return err
	}
	return b.publish(tmp, dst, exclusive)
}

// RenameIfNotExists moves from onto to with a single native
// rename-without-replace. It never falls back to copy and delete.
func (b *Backend) RenameIfNotExists(ctx context.Context, from, to storage.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, dst := b.abs(from), b.abs(to)
	info, err := b.client.Stat(src)
	if err != nil {
		return mapError(err, src)
	}
	if info.IsDir() {
		return notFound(from, fmt.Errorf("%s is a directory", src))
	}

	if err := b.client.MkdirAll(path.Dir(dst), dirPerm); err != nil {
		return mapError(err, path.Dir(dst))
	}
	if err := b.client.RenameNoReplace(src, dst); err != nil {
		return mapError(err, dst)
	}
	return nil
}
