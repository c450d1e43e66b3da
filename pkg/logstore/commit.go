package logstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/storage"
)

const (
	commitSuffix    = ".json"
	commitDigits    = 20
	tempCommitStart = "_commit_"
	tempCommitEnd   = ".json.tmp"
)

// LogDir is the directory holding the commit files of a table.
var LogDir = storage.MustParsePath("_delta_log")

// CommitPath returns the path of commit version: _delta_log/<20 digits>.json.
func CommitPath(version int64) storage.Path {
	return LogDir.Child(fmt.Sprintf("%0*d%s", commitDigits, version, commitSuffix))
}

// TempCommitPath returns a fresh, unique staging path inside the log directory.
func TempCommitPath() storage.Path {
	return LogDir.Child(tempCommitStart + uuid.NewString() + tempCommitEnd)
}

// ParseCommitVersion extracts the version from a commit file path.
// ok is false for anything that is not a commit file directly under LogDir.
func ParseCommitVersion(p storage.Path) (version int64, ok bool) {
	if p.Parent() != LogDir {
		return 0, false
	}
	name := p.Filename()
	digits, found := strings.CutSuffix(name, commitSuffix)
	if !found || len(digits) != commitDigits {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// WriteCommit stages data in a temporary file and publishes it as commit
// version. The temporary file is removed if the commit fails.
//
// Returns ErrVersionAlreadyExists if another writer won the race for version.
func WriteCommit(ctx context.Context, ls LogStore, version int64, data []byte) error {
	tmp := TempCommitPath()
	store := ls.ObjectStore()

	if _, err := store.PutOpts(ctx, tmp, data, storage.PutOptions{Mode: storage.PutModeCreate}); err != nil {
		return fmt.Errorf("failed to stage commit %d: %w", version, err)
	}

	if err := ls.WriteCommitEntry(ctx, version, tmp); err != nil {
		if abortErr := ls.AbortCommitEntry(ctx, version, tmp); abortErr != nil && !errors.Is(abortErr, storage.ErrNotFound) {
			logger.Warn("Failed to clean up staged commit %s: %v", tmp, abortErr)
		}
		return err
	}
	return nil
}
