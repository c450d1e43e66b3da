package logstore_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"

	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/marmos91/tablestore/pkg/storage/memory"
	storagetesting "github.com/marmos91/tablestore/pkg/storage/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogStore(t *testing.T) *logstore.DefaultLogStore {
	t.Helper()
	u, err := url.Parse("memory:///tables/t1")
	require.NoError(t, err)
	return logstore.NewDefaultLogStore(memory.NewMemoryStore(), logstore.Config{Location: u})
}

func TestCommitPath(t *testing.T) {
	assert.Equal(t, "_delta_log/00000000000000000000.json", logstore.CommitPath(0).String())
	assert.Equal(t, "_delta_log/00000000000000000042.json", logstore.CommitPath(42).String())

	tmp := logstore.TempCommitPath()
	assert.True(t, tmp.HasPrefix(logstore.LogDir))
	assert.NotEqual(t, tmp, logstore.TempCommitPath(), "temporary paths are unique")
	_, ok := logstore.ParseCommitVersion(tmp)
	assert.False(t, ok)
}

func TestParseCommitVersion(t *testing.T) {
	tests := []struct {
		path    string
		version int64
		ok      bool
	}{
		{"_delta_log/00000000000000000000.json", 0, true},
		{"_delta_log/00000000000000000123.json", 123, true},
		{"_delta_log/00000000000000000010.checkpoint.parquet", 0, false},
		{"_delta_log/0000000000000000010.json", 0, false},
		{"_delta_log/_last_checkpoint", 0, false},
		{"other/00000000000000000001.json", 0, false},
		{"_delta_log/sub/00000000000000000001.json", 0, false},
		{"_delta_log/0000000000000000000x.json", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			v, ok := logstore.ParseCommitVersion(storage.MustParsePath(tt.path))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.version, v)
		})
	}
}

func TestDefaultLogStore_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	ls := newLogStore(t)

	isTable, err := ls.IsTableLocation(ctx)
	require.NoError(t, err)
	assert.False(t, isTable)

	_, err = ls.GetLatestVersion(ctx, 0)
	assert.ErrorIs(t, err, logstore.ErrNotATable)

	for v := int64(0); v < 3; v++ {
		require.NoError(t, logstore.WriteCommit(ctx, ls, v, []byte(fmt.Sprintf(`{"version":%d}`, v))))
	}

	data, err := ls.ReadCommitEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))

	_, err = ls.ReadCommitEntry(ctx, 7)
	assert.ErrorIs(t, err, logstore.ErrCommitNotFound)

	latest, err := ls.GetLatestVersion(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), latest)

	_, err = ls.GetLatestVersion(ctx, 3)
	assert.ErrorIs(t, err, logstore.ErrNotATable)

	isTable, err = ls.IsTableLocation(ctx)
	require.NoError(t, err)
	assert.True(t, isTable)
}

func TestDefaultLogStore_DuplicateVersion(t *testing.T) {
	ctx := context.Background()
	ls := newLogStore(t)

	require.NoError(t, logstore.WriteCommit(ctx, ls, 0, []byte("first")))

	err := logstore.WriteCommit(ctx, ls, 0, []byte("second"))
	assert.ErrorIs(t, err, logstore.ErrVersionAlreadyExists)

	data, err := ls.ReadCommitEntry(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	metas, err := storage.Collect(ls.ObjectStore().List(ctx, logstore.LogDir))
	require.NoError(t, err)
	assert.Len(t, metas, 1, "the losing temporary file is removed")
}

func TestDefaultLogStore_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	ls := newLogStore(t)

	const writers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := logstore.WriteCommit(ctx, ls, 5, []byte(fmt.Sprintf("writer-%d", i)))
			if err != nil {
				assert.ErrorIs(t, err, logstore.ErrVersionAlreadyExists)
				return
			}
			mu.Lock()
			winners = append(winners, i)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	data, err := ls.ReadCommitEntry(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("writer-%d", winners[0]), string(data))
}

func TestDefaultLogStore_Accessors(t *testing.T) {
	ls := newLogStore(t)

	assert.Equal(t, logstore.DefaultLogStoreName, ls.Name())
	assert.Equal(t, "memory:///tables/t1", ls.RootURI())
	assert.NotNil(t, ls.Config().Options, "options default to an empty map")
	assert.Equal(t, "", logstore.NewDefaultLogStore(memory.NewMemoryStore(), logstore.Config{}).RootURI())
}

func TestDefaultLogStore_WriteFailureIsNotAConflict(t *testing.T) {
	ctx := context.Background()
	ls := newLogStore(t)

	err := ls.WriteCommitEntry(ctx, 0, storage.MustParsePath("_delta_log/_commit_missing.json.tmp"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, logstore.ErrVersionAlreadyExists))
	storagetesting.AssertErrorIs(t, storage.ErrNotFound, err)
}

func TestForURL(t *testing.T) {
	memory.RegisterHandlers()

	u, err := url.Parse("memory:///t")
	require.NoError(t, err)
	ls, err := logstore.ForURL(memory.NewMemoryStore(), u, nil)
	require.NoError(t, err)
	assert.Equal(t, logstore.DefaultLogStoreName, ls.Name())

	unknown, err := url.Parse("s3x://bucket/t")
	require.NoError(t, err)
	_, err = logstore.ForURL(memory.NewMemoryStore(), unknown, nil)
	storagetesting.AssertErrorIs(t, storage.ErrInvalidLocation, err)

	_, err = logstore.Open(context.Background(), "s3x://bucket/t", nil)
	storagetesting.AssertErrorIs(t, storage.ErrInvalidLocation, err)
}

func TestDefaultFactory(t *testing.T) {
	u, err := url.Parse("custom://x/t")
	require.NoError(t, err)

	ls, err := logstore.DefaultFactory{}.WithOptions(memory.NewMemoryStore(), u, storage.StorageOptions{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "v", ls.Config().Options["k"])
}
