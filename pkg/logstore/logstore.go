// Package logstore implements the transaction log layer that sits on top of
// an object store: numbered commit files under _delta_log/ published with an
// atomic rename-if-not-exists.
package logstore

import (
	"context"
	"errors"
	"net/url"

	"github.com/marmos91/tablestore/pkg/storage"
)

var (
	// ErrVersionAlreadyExists is returned when another writer already
	// committed the requested version.
	ErrVersionAlreadyExists = errors.New("commit version already exists")

	// ErrCommitNotFound is returned when a commit file is absent.
	ErrCommitNotFound = errors.New("commit not found")

	// ErrNotATable is returned when a location holds no commit at all.
	ErrNotATable = errors.New("location is not a table")
)

// Config is the configuration a log store was created with.
type Config struct {
	// Location is the table root URL
	Location *url.URL

	// Options are the storage options the table was opened with
	Options storage.StorageOptions
}

// LogStore reads and writes the commit log of one table.
//
// Commits are published by renaming a fully written temporary file onto
// the commit path with ObjectStore.RenameIfNotExists, so concurrent writers
// racing for the same version have exactly one winner.
type LogStore interface {
	// Name identifies the log store implementation.
	Name() string

	// ReadCommitEntry returns the contents of commit version.
	// Returns ErrCommitNotFound if it does not exist.
	ReadCommitEntry(ctx context.Context, version int64) ([]byte, error)

	// WriteCommitEntry publishes the temporary file tmp as commit version.
	// Returns ErrVersionAlreadyExists if that version was already committed.
	WriteCommitEntry(ctx context.Context, version int64, tmp storage.Path) error

	// AbortCommitEntry discards the temporary file of a failed commit.
	AbortCommitEntry(ctx context.Context, version int64, tmp storage.Path) error

	// GetLatestVersion returns the highest committed version that is >= start.
	// Returns ErrNotATable if no commit exists.
	GetLatestVersion(ctx context.Context, start int64) (int64, error)

	// IsTableLocation reports whether the log directory holds any commit.
	IsTableLocation(ctx context.Context) (bool, error)

	// ObjectStore returns the store the log lives in.
	ObjectStore() storage.ObjectStore

	// RootURI returns the table location as a string.
	RootURI() string

	// Config returns the configuration of the log store.
	Config() Config
}
