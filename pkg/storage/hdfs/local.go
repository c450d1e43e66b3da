package hdfs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/marmos91/tablestore/internal/logger"
)

// localClient serves an HDFS namespace mounted on the local filesystem
// (hadoop-fuse-dfs, the NFS gateway) or a plain directory in tests.
//
// Filesystem paths are interpreted relative to the mount point: the HDFS
// path /warehouse/t1 lives at <mount>/warehouse/t1.
type localClient struct {
	mount string
}

// NewLocalClient returns a Client serving the namespace mounted at mount.
func NewLocalClient(mount string) (Client, error) {
	abs, err := filepath.Abs(mount)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mount point %q: %w", mount, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mount point %q: %w", mount, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mount point %q is not a directory", mount)
	}
	return &localClient{mount: resolved}, nil
}

func (c *localClient) local(name string) string {
	return filepath.Join(c.mount, filepath.FromSlash(path.Clean("/"+name)))
}

func (c *localClient) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(c.local(name))
}

func (c *localClient) Open(name string) (File, error) {
	f, err := os.Open(c.local(name))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *localClient) Create(name string) (io.WriteCloser, error) {
	f, err := os.OpenFile(c.local(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (c *localClient) MkdirAll(name string, perm fs.FileMode) error {
	return os.MkdirAll(c.local(name), perm)
}

func (c *localClient) ReadDir(name string) ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(c.local(name))
	if err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (c *localClient) Remove(name string) error {
	return os.Remove(c.local(name))
}

func (c *localClient) Rename(from, to string) error {
	return os.Rename(c.local(from), c.local(to))
}

// RenameNoReplace uses renameat2(RENAME_NOREPLACE) where the kernel and
// the mounted filesystem support it, and link(2) otherwise.
func (c *localClient) RenameNoReplace(from, to string) error {
	src, dst := c.local(from), c.local(to)
	err := renameNoReplaceAt(src, dst)
	if !errors.Is(err, errors.ErrUnsupported) {
		return err
	}
	return linkNoReplace(src, dst)
}

// linkNoReplace links dst to src, failing with fs.ErrExist if dst exists,
// and then unlinks src. Of two callers moving the same source only the one
// whose unlink succeeds keeps its destination.
func linkNoReplace(src, dst string) error {
	if err := os.Link(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		if rmErr := os.Remove(dst); rmErr != nil {
			logger.Warn("Failed to remove link %s: %v", dst, rmErr)
		}
		return err
	}
	return nil
}

func (c *localClient) Canonicalize(name string) (string, error) {
	resolved, err := filepath.EvalSymlinks(c.local(name))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", name)
	}

	rel, err := filepath.Rel(c.mount, resolved)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s resolves outside the mount point", name)
	}
	if rel == "." {
		return "/", nil
	}
	return "/" + filepath.ToSlash(rel), nil
}

func (c *localClient) Close() error {
	return nil
}
