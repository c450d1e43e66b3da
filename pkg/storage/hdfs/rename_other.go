//go:build !linux

package hdfs

import "errors"

func renameNoReplaceAt(_, _ string) error {
	return errors.ErrUnsupported
}
