package hdfs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/storage"
	storagetesting "github.com/marmos91/tablestore/pkg/storage/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

// localFactory serves every URL from the local directory mount.
func localFactory(mount string, closed *int) ClientFactory {
	return func(_ context.Context, _ *url.URL, _ Options) (Client, error) {
		client, err := NewLocalClient(mount)
		if err != nil {
			return nil, err
		}
		return closeCounter{Client: client, closed: closed}, nil
	}
}

func TestFactory_Schemes(t *testing.T) {
	f := NewFactory("webhdfs-ha", "")

	assert.True(t, f.Serves("hdfs"))
	assert.True(t, f.Serves("VIEWFS"))
	assert.True(t, f.Serves("webhdfs-ha"))
	assert.False(t, f.Serves("s3"))
	assert.Equal(t, []string{"hdfs", "viewfs", "webhdfs-ha"}, f.SchemesList())
}

func TestFactory_ParseURLOpts(t *testing.T) {
	ctx := context.Background()
	mount := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(mount, "warehouse", "t1"), 0o755))

	t.Run("FuseMount", func(t *testing.T) {
		store, root, err := NewFactory().ParseURLOpts(ctx, mustURL(t, "hdfs://nn:8020/warehouse/t1"), storage.StorageOptions{
			"hdfs_fuse_mount": mount,
		})
		require.NoError(t, err)
		defer storage.Close(store)

		assert.True(t, root.IsRoot(), "the backend is already rooted at the URL path")
		assert.IsType(t, &Backend{}, store)

		_, err = store.Put(ctx, storage.MustParsePath("x"), []byte("x"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(mount, "warehouse", "t1", "x"))
		assert.NoError(t, err)
	})

	t.Run("CreateRoot", func(t *testing.T) {
		store, _, err := NewFactory().ParseURLOpts(ctx, mustURL(t, "hdfs://nn/new/table"), storage.StorageOptions{
			"hdfs_fuse_mount":  mount,
			"hdfs_create_root": "true",
		})
		require.NoError(t, err)
		defer storage.Close(store)

		info, err := os.Stat(filepath.Join(mount, "new", "table"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("SchemeMismatch", func(t *testing.T) {
		_, _, err := NewFactory().ParseURLOpts(ctx, mustURL(t, "s3://bucket/t1"), nil)
		storagetesting.AssertErrorIs(t, storage.ErrInvalidLocation, err)
	})

	t.Run("Opaque", func(t *testing.T) {
		_, _, err := NewFactory().ParseURLOpts(ctx, mustURL(t, "hdfs:warehouse/t1"), nil)
		storagetesting.AssertErrorIs(t, storage.ErrInvalidLocation, err)
	})

	t.Run("ClientFailure", func(t *testing.T) {
		f := NewFactory().WithClientFactory(func(context.Context, *url.URL, Options) (Client, error) {
			return nil, errors.New("namenode unreachable")
		})

		_, _, err := f.ParseURLOpts(ctx, mustURL(t, "hdfs://nn/warehouse/t1"), nil)
		storagetesting.AssertErrorIs(t, storage.ErrConstructionFailure, err)
		assert.Contains(t, err.Error(), "namenode unreachable")
	})

	t.Run("MissingRootClosesClient", func(t *testing.T) {
		closed := 0
		f := NewFactory().WithClientFactory(localFactory(mount, &closed))

		_, _, err := f.ParseURLOpts(ctx, mustURL(t, "hdfs://nn/missing"), nil)
		storagetesting.AssertErrorIs(t, storage.ErrConstructionFailure, err)
		assert.Equal(t, 1, closed)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, _, err := NewFactory().ParseURLOpts(canceled, mustURL(t, "hdfs://nn/warehouse/t1"), storage.StorageOptions{"hdfs_fuse_mount": mount})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("OptionsReachClientFactory", func(t *testing.T) {
		var got Options
		f := NewFactory().WithClientFactory(func(_ context.Context, _ *url.URL, opts Options) (Client, error) {
			got = opts
			return NewLocalClient(mount)
		})

		store, _, err := f.ParseURLOpts(ctx, mustURL(t, "hdfs://nn/warehouse/t1"), storage.StorageOptions{
			"hdfs_user":     "etl",
			"dfs.blocksize": "134217728",
		})
		require.NoError(t, err)
		defer storage.Close(store)

		assert.Equal(t, "etl", got.User)
		assert.Equal(t, map[string]string{"dfs.blocksize": "134217728"}, got.Hadoop)
	})
}

func TestFactory_WithOptions(t *testing.T) {
	backend, _ := newTestBackend(t)
	location := mustURL(t, "hdfs://namenode:8020/warehouse/t1")

	ls, err := NewFactory().WithOptions(backend, location, storage.StorageOptions{"hdfs_user": "etl"})
	require.NoError(t, err)

	assert.Equal(t, logstore.DefaultLogStoreName, ls.Name())
	assert.Same(t, backend, ls.ObjectStore())
	assert.Equal(t, location.String(), ls.RootURI())
	assert.Equal(t, "etl", ls.Config().Options["hdfs_user"])
}

func TestRegisterHandlers(t *testing.T) {
	RegisterHandlers()

	hdfsFactory, ok := storage.Factories().Get("hdfs")
	require.True(t, ok)
	viewfsFactory, ok := storage.Factories().Get("viewfs")
	require.True(t, ok)
	assert.Same(t, hdfsFactory, viewfsFactory, "one factory serves both schemes")

	hdfsLogStore, ok := logstore.LogStores().Get("HDFS")
	require.True(t, ok)
	assert.Same(t, hdfsFactory, hdfsLogStore)

	_, err := storage.LookupFactory(mustURL(t, "s3x://bucket/t"))
	storagetesting.AssertErrorIs(t, storage.ErrInvalidLocation, err)

	// Registering again replaces the previous entry.
	RegisterHandlers()
	again, ok := storage.Factories().Get("hdfs")
	require.True(t, ok)
	assert.NotSame(t, hdfsFactory, again)
}

// TestCommitRace opens a table through the registries and lets several
// writers race for the same commit version over the HDFS backend.
func TestCommitRace(t *testing.T) {
	RegisterHandlers()
	mount := t.TempDir()
	opts := storage.StorageOptions{"hdfs_fuse_mount": mount, "hdfs_create_root": "yes"}
	ctx := context.Background()

	ls, err := logstore.Open(ctx, "hdfs://nn/warehouse/race", opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close(ls.ObjectStore()) })

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := logstore.WriteCommit(ctx, ls, 0, []byte(fmt.Sprintf(`{"writer":%d}`, i)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, logstore.ErrVersionAlreadyExists):
				losers++
			default:
				t.Errorf("writer %d: unexpected error: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, writers-1, losers)

	latest, err := ls.GetLatestVersion(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)

	entries, err := os.ReadDir(filepath.Join(mount, "warehouse", "race", "_delta_log"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "losing writers leave no temporary files behind")
}
