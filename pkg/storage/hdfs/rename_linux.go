package hdfs

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// renameNoReplaceAt moves src to dst unless dst exists. It reports
// errors.ErrUnsupported when the filesystem rejects the flag.
func renameNoReplaceAt(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.EINVAL), errors.Is(err, unix.ENOSYS), errors.Is(err, unix.ENOTSUP):
		return errors.ErrUnsupported
	}
	return &os.LinkError{Op: "rename", Old: src, New: dst, Err: err}
}
