package badger

import (
	"context"
	"net/url"
	"testing"

	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/storage"
	storagetesting "github.com/marmos91/tablestore/pkg/storage/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInMemoryStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := Open("", Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// TestBadgerStore runs the complete ObjectStore test suite against an
// in-memory BadgerStore.
func TestBadgerStore(t *testing.T) {
	suite := &storagetesting.StoreTestSuite{
		NewStore: func(t *testing.T) storage.ObjectStore {
			return newInMemoryStore(t)
		},
		SupportsUpdate:    true,
		SupportsMultipart: true,
	}

	suite.Run(t)
}

func TestBadgerStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	location := storage.MustParsePath("_delta_log/00000000000000000000.json")

	store, err := Open(dir, Options{SyncWrites: true})
	require.NoError(t, err)
	put, err := store.Put(ctx, location, []byte(`{"commitInfo":{}}`))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(dir, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	meta, err := reopened.Head(ctx, location)
	require.NoError(t, err)
	assert.Equal(t, put.ETag, meta.ETag, "the ETag is stored with the object")
	assert.Equal(t, int64(len(`{"commitInfo":{}}`)), meta.Size)
}

func TestBadgerStore_RenameKeepsETag(t *testing.T) {
	store := newInMemoryStore(t)
	ctx := context.Background()
	from := storage.MustParsePath("_delta_log/_commit_x.json.tmp")
	to := storage.MustParsePath("_delta_log/00000000000000000003.json")

	put, err := store.Put(ctx, from, []byte("commit"))
	require.NoError(t, err)
	require.NoError(t, store.RenameIfNotExists(ctx, from, to))

	meta, err := store.Head(ctx, to)
	require.NoError(t, err)
	assert.Equal(t, put.ETag, meta.ETag)
	assert.NotEmpty(t, meta.Version)
}

func TestCodec(t *testing.T) {
	h := newHeader()
	val := encodeValue(h, []byte("payload"))
	assert.Len(t, val, headerLen+len("payload"))

	decoded, payload, err := decodeValue(val)
	require.NoError(t, err)
	assert.Equal(t, h.ETag(), decoded.ETag())
	assert.True(t, h.modified.Equal(decoded.modified))
	assert.Equal(t, []byte("payload"), payload)

	_, _, err = decodeValue([]byte("short"))
	assert.Error(t, err)

	assert.Equal(t, "o/a/b", string(keyObject(storage.MustParsePath("a/b"))))
	assert.Equal(t, "o/", string(keyScan(storage.Path{})))
}

func TestFactory(t *testing.T) {
	ctx := context.Background()

	t.Run("Directory", func(t *testing.T) {
		u := &url.URL{Scheme: Scheme, Path: t.TempDir()}
		store, root, err := Factory{}.ParseURLOpts(ctx, u, nil)
		require.NoError(t, err)
		defer storage.Close(store)

		assert.True(t, root.IsRoot())
		assert.Contains(t, store.String(), u.Path)
	})

	t.Run("InMemory", func(t *testing.T) {
		u, err := url.Parse("badger:///ignored")
		require.NoError(t, err)
		store, _, err := Factory{}.ParseURLOpts(ctx, u, storage.StorageOptions{"badger_in_memory": "yes"})
		require.NoError(t, err)
		defer storage.Close(store)

		assert.Equal(t, "BadgerObjectStore(in-memory)", store.String())
	})

	t.Run("InvalidLocations", func(t *testing.T) {
		for _, raw := range []string{"badger://host/dir", "badger:relative", "badger://", "memory:///x"} {
			u, err := url.Parse(raw)
			require.NoError(t, err)
			_, _, err = Factory{}.ParseURLOpts(ctx, u, nil)
			storagetesting.AssertErrorIs(t, storage.ErrInvalidLocation, err)
		}
	})

	t.Run("LockedDirectory", func(t *testing.T) {
		dir := t.TempDir()
		first, err := Open(dir, Options{})
		require.NoError(t, err)
		defer first.Close()

		_, _, err = Factory{}.ParseURLOpts(ctx, &url.URL{Scheme: Scheme, Path: dir}, nil)
		storagetesting.AssertErrorIs(t, storage.ErrConstructionFailure, err)
	})
}

func TestRegisterHandlers(t *testing.T) {
	RegisterHandlers()

	ls, err := logstore.Open(context.Background(), "badger://"+t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(ls.ObjectStore()) })

	assert.Equal(t, logstore.DefaultLogStoreName, ls.Name())
	_, ok := ls.ObjectStore().(*BadgerStore)
	assert.True(t, ok, "badger stores are rooted at the database and not wrapped")

	require.NoError(t, logstore.WriteCommit(context.Background(), ls, 0, []byte("{}")))
	latest, err := ls.GetLatestVersion(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)
}
