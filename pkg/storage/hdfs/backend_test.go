package hdfs

import (
	"context"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/marmos91/tablestore/pkg/storage"
	storagetesting "github.com/marmos91/tablestore/pkg/storage/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBackend returns a Backend rooted at hdfs://namenode/warehouse/t1
// over a local mount in a temporary directory.
func newTestBackend(t *testing.T) (*Backend, string) {
	t.Helper()
	mount := t.TempDir()

	client, err := NewLocalClient(mount)
	require.NoError(t, err)

	u, err := url.Parse("hdfs://namenode:8020/warehouse/t1")
	require.NoError(t, err)

	backend, err := NewBackend(client, u, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend, mount
}

// TestBackend runs the complete ObjectStore test suite against the HDFS
// backend over a locally mounted namespace.
func TestBackend(t *testing.T) {
	suite := &storagetesting.StoreTestSuite{
		NewStore: func(t *testing.T) storage.ObjectStore {
			backend, _ := newTestBackend(t)
			return backend
		},
	}

	suite.Run(t)
}

func TestBackend_WritesBelowRoot(t *testing.T) {
	backend, mount := newTestBackend(t)
	ctx := context.Background()

	_, err := backend.Put(ctx, storage.MustParsePath("_delta_log/00000000000000000000.json"), []byte("{}"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(mount, "warehouse", "t1", "_delta_log", "00000000000000000000.json"))
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), data)
}

func TestBackend_StagingFilesAreHidden(t *testing.T) {
	backend, mount := newTestBackend(t)
	ctx := context.Background()

	_, err := backend.Put(ctx, storage.MustParsePath("dir/visible"), []byte("x"))
	require.NoError(t, err)

	// Simulate a writer that crashed before publishing.
	leftover := stagingPath(filepath.Join(mount, "warehouse", "t1", "dir", "visible"))
	require.NoError(t, os.WriteFile(leftover, []byte("partial"), 0o644))

	metas, err := storage.Collect(backend.List(ctx, storage.Path{}))
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "dir/visible", metas[0].Location.String())

	res, err := backend.ListWithDelimiter(ctx, storage.MustParsePath("dir"))
	require.NoError(t, err)
	assert.Len(t, res.Objects, 1)
}

func TestBackend_DotFilesAreObjects(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	for _, name := range []string{"dir/.x.staging", "dir/.hidden", "dir/.a.not-a-uuid.staging"} {
		_, err := backend.Put(ctx, storage.MustParsePath(name), []byte("x"))
		require.NoError(t, err)
	}

	metas, err := storage.Collect(backend.List(ctx, storage.MustParsePath("dir")))
	require.NoError(t, err)
	assert.Len(t, metas, 3)

	res, err := backend.ListWithDelimiter(ctx, storage.MustParsePath("dir"))
	require.NoError(t, err)
	assert.Len(t, res.Objects, 3)
}

func TestIsStaging(t *testing.T) {
	assert.True(t, isStaging(path.Base(stagingPath("/t/_delta_log/00000000000000000001.json"))))
	assert.True(t, isStaging(path.Base(lockPath("/t/_delta_log/00000000000000000001.json"))))

	for _, name := range []string{
		".x.staging",
		"x.0b7e7a4c-3a8e-4c39-9a2f-4b8f1f6a2c11.staging",
		"..0b7e7a4c-3a8e-4c39-9a2f-4b8f1f6a2c11.staging",
		".x.0b7e7a4c3a8e4c399a2f4b8f1f6a2c11.staging",
		".x.0b7e7a4c-3a8e-4c39-9a2f-4b8f1f6a2c11",
	} {
		assert.False(t, isStaging(name), name)
	}
}

func TestBackend_NoStagingFilesAfterWrites(t *testing.T) {
	backend, mount := newTestBackend(t)
	ctx := context.Background()
	location := storage.MustParsePath("a/b")

	_, err := backend.Put(ctx, location, []byte("one"))
	require.NoError(t, err)
	_, err = backend.PutOpts(ctx, location, []byte("two"), storage.PutOptions{Mode: storage.PutModeCreate})
	storagetesting.AssertErrorIs(t, storage.ErrAlreadyExists, err)

	entries, err := os.ReadDir(filepath.Join(mount, "warehouse", "t1", "a"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "the failed create must remove its staging file")
	assert.Equal(t, "b", entries[0].Name())
}

func TestBackend_DirectoriesAreNotObjects(t *testing.T) {
	backend, _ := newTestBackend(t)
	ctx := context.Background()

	_, err := backend.Put(ctx, storage.MustParsePath("dir/file"), []byte("x"))
	require.NoError(t, err)

	_, err = backend.Head(ctx, storage.MustParsePath("dir"))
	storagetesting.AssertErrorIs(t, storage.ErrNotFound, err)

	_, err = backend.Get(ctx, storage.MustParsePath("dir"))
	storagetesting.AssertErrorIs(t, storage.ErrNotFound, err)

	err = backend.Delete(ctx, storage.MustParsePath("dir"))
	storagetesting.AssertErrorIs(t, storage.ErrNotFound, err)
}

func TestBackend_PutMultipartWritesNothing(t *testing.T) {
	backend, mount := newTestBackend(t)

	upload, err := backend.PutMultipartOpts(context.Background(), storage.MustParsePath("big.parquet"), storage.PutMultipartOptions{})
	storagetesting.AssertErrorIs(t, storage.ErrNotSupported, err)
	assert.Nil(t, upload)

	entries, err := os.ReadDir(filepath.Join(mount, "warehouse", "t1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBackend_UpdateModeNotSupported(t *testing.T) {
	backend, _ := newTestBackend(t)

	_, err := backend.PutOpts(context.Background(), storage.MustParsePath("x"), []byte("x"), storage.PutOptions{Mode: storage.PutModeUpdate, ETag: "1"})
	storagetesting.AssertErrorIs(t, storage.ErrNotSupported, err)
}

func TestBackend_String(t *testing.T) {
	backend, _ := newTestBackend(t)
	assert.Equal(t, "HadoopFileStorageBackend(hdfs://namenode:8020/warehouse/t1)", backend.String())
}

func TestBackend_RootIsCanonical(t *testing.T) {
	mount := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(mount, "real", "t1"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(mount, "real"), filepath.Join(mount, "alias")))

	client, err := NewLocalClient(mount)
	require.NoError(t, err)

	u, err := url.Parse("hdfs://nn/alias/./t1/")
	require.NoError(t, err)

	backend, err := NewBackend(client, u, false)
	require.NoError(t, err)
	assert.Equal(t, "/real/t1", backend.Root().Path)
}

func TestBackend_MissingRootFailsConstruction(t *testing.T) {
	client, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)

	u, err := url.Parse("hdfs://nn/does/not/exist")
	require.NoError(t, err)

	_, err = NewBackend(client, u, false)
	storagetesting.AssertErrorIs(t, storage.ErrConstructionFailure, err)
}

// recordingClient records the native operations issued by the Backend.
type recordingClient struct {
	Client

	mu  sync.Mutex
	ops []string
}

func (c *recordingClient) record(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, op)
}

func (c *recordingClient) Open(name string) (File, error) {
	c.record("open")
	return c.Client.Open(name)
}

func (c *recordingClient) Create(name string) (io.WriteCloser, error) {
	c.record("create")
	return c.Client.Create(name)
}

func (c *recordingClient) Rename(from, to string) error {
	c.record("rename")
	return c.Client.Rename(from, to)
}

func (c *recordingClient) RenameNoReplace(from, to string) error {
	c.record("rename-no-replace")
	return c.Client.RenameNoReplace(from, to)
}

func (c *recordingClient) Remove(name string) error {
	c.record("remove")
	return c.Client.Remove(name)
}

func TestBackend_RenameIfNotExistsIsSingleNativeRename(t *testing.T) {
	local, err := NewLocalClient(t.TempDir())
	require.NoError(t, err)
	client := &recordingClient{Client: local}

	u, err := url.Parse("hdfs://nn/t")
	require.NoError(t, err)
	backend, err := NewBackend(client, u, true)
	require.NoError(t, err)

	ctx := context.Background()
	from := storage.MustParsePath("_delta_log/_commit_1.json.tmp")
	to := storage.MustParsePath("_delta_log/00000000000000000001.json")
	_, err = backend.Put(ctx, from, []byte("commit"))
	require.NoError(t, err)

	client.ops = nil
	require.NoError(t, backend.RenameIfNotExists(ctx, from, to))
	assert.Equal(t, []string{"rename-no-replace"}, client.ops, "no copy and no delete")

	_, err = backend.Put(ctx, from, []byte("loser"))
	require.NoError(t, err)
	client.ops = nil

	err = backend.RenameIfNotExists(ctx, from, to)
	storagetesting.AssertErrorIs(t, storage.ErrAlreadyExists, err)
	assert.Equal(t, []string{"rename-no-replace"}, client.ops)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want storage.ErrorCode
	}{
		{"not exist", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, storage.ErrNotFound},
		{"exist", &os.LinkError{Op: "link", Old: "/a", New: "/b", Err: fs.ErrExist}, storage.ErrAlreadyExists},
		{"permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, storage.ErrPermissionDenied},
		{"other", io.ErrUnexpectedEOF, storage.ErrIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.err, "/x")
			assert.Equal(t, tt.want, storage.CodeOf(err))
			assert.ErrorIs(t, err, tt.err, "native error is preserved")
			assert.True(t, strings.HasPrefix(err.Error(), StoreName))
		})
	}

	assert.NoError(t, mapError(nil, "/x"))
}
