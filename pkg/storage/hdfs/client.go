package hdfs

import (
	"errors"
	"io"
	"io/fs"

	"github.com/marmos91/tablestore/pkg/storage"
)

// Client is the native filesystem handle the Backend delegates to.
//
// All names are absolute, slash-separated filesystem paths. Errors follow
// the io/fs conventions: implementations wrap fs.ErrNotExist, fs.ErrExist and
// fs.ErrPermission so the Backend can classify them with errors.Is.
//
// Implementations:
//   - rpcClient: the namenode RPC client (github.com/colinmarc/hdfs/v2)
//   - viewfsClient: a ViewFS mount table routing to per-namenode clients
//   - localClient: an HDFS namespace mounted on the local filesystem (FUSE, NFS gateway)
type Client interface {
	// Stat returns the file info of name.
	Stat(name string) (fs.FileInfo, error)

	// Open opens name for reading.
	Open(name string) (File, error)

	// Create creates name for writing. It fails with fs.ErrExist if name
	// already exists and with fs.ErrNotExist if the parent is missing.
	Create(name string) (io.WriteCloser, error)

	// MkdirAll creates name and any missing parents.
	MkdirAll(name string, perm fs.FileMode) error

	// ReadDir lists the direct children of the directory name.
	ReadDir(name string) ([]fs.FileInfo, error)

	// Remove deletes the file or empty directory name.
	Remove(name string) error

	// Rename moves from to to, replacing an existing file at to.
	Rename(from, to string) error

	// RenameNoReplace moves from to to atomically, failing with fs.ErrExist
	// if to exists. Among concurrent callers targeting the same absent
	// destination exactly one succeeds.
	RenameNoReplace(from, to string) error

	// Canonicalize resolves name to its canonical absolute form. It fails
	// if name does not exist or is not a directory.
	Canonicalize(name string) (string, error)

	// Close releases the connection to the filesystem.
	Close() error
}

// File is an open file returned by Client.Open.
type File interface {
	io.Reader
	io.ReaderAt
	io.Closer
	Stat() (fs.FileInfo, error)
}

// mapError classifies a native error into the storage error taxonomy.
func mapError(err error, name string) error {
	if err == nil {
		return nil
	}

	var se *storage.StorageError
	if errors.As(err, &se) {
		return err
	}

	code := storage.ErrIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = storage.ErrNotFound
	case errors.Is(err, fs.ErrExist):
		code = storage.ErrAlreadyExists
	case errors.Is(err, fs.ErrPermission):
		code = storage.ErrPermissionDenied
	case errors.Is(err, errors.ErrUnsupported):
		code = storage.ErrNotSupported
	}
	return storage.NewError(code, StoreName, name, err)
}
