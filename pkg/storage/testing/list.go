package testing

import (
	"sort"
	"testing"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunListTests executes the listing tests.
func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	t.Run("List_Recursive", suite.testListRecursive)
	t.Run("List_SegmentPrefix", suite.testListSegmentPrefix)
	t.Run("List_MissingPrefix", suite.testListMissingPrefix)
	t.Run("List_Restartable", suite.testListRestartable)
	t.Run("List_EarlyBreak", suite.testListEarlyBreak)
	t.Run("ListWithDelimiter", suite.testListWithDelimiter)
	t.Run("ListWithDelimiter_MissingPrefix", suite.testListWithDelimiterMissing)
}

// seedTree writes a small table-shaped tree and returns its locations, sorted.
func seedTree(t *testing.T, store storage.ObjectStore) []string {
	t.Helper()
	locs := []string{
		"_delta_log/00000000000000000000.json",
		"_delta_log/00000000000000000001.json",
		"part=a/file-0.parquet",
		"part=a/file-1.parquet",
		"part=ab/file-0.parquet",
		"root.txt",
	}
	for _, l := range locs {
		mustPut(t, store, path(t, l), []byte(l))
	}
	return locs
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func (suite *StoreTestSuite) testListRecursive(t *testing.T) {
	store := suite.NewStore(t)
	all := seedTree(t, store)

	metas := mustList(t, store, storage.Path{})
	assert.Equal(t, sorted(all), sorted(locations(metas)))

	for _, m := range metas {
		assert.Equal(t, int64(len(m.Location.String())), m.Size, "size of %s", m.Location)
	}
}

func (suite *StoreTestSuite) testListSegmentPrefix(t *testing.T) {
	store := suite.NewStore(t)
	seedTree(t, store)

	metas := mustList(t, store, path(t, "part=a"))
	assert.Equal(t, []string{"part=a/file-0.parquet", "part=a/file-1.parquet"}, sorted(locations(metas)),
		"part=a must not match part=ab")
}

func (suite *StoreTestSuite) testListMissingPrefix(t *testing.T) {
	store := suite.NewStore(t)
	seedTree(t, store)

	metas := mustList(t, store, path(t, "no/such/prefix"))
	assert.Empty(t, metas)
}

func (suite *StoreTestSuite) testListRestartable(t *testing.T) {
	store := suite.NewStore(t)
	seedTree(t, store)

	seq := store.List(testContext(), path(t, "_delta_log"))

	first, err := storage.Collect(seq)
	require.NoError(t, err)
	second, err := storage.Collect(seq)
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Equal(t, sorted(locations(first)), sorted(locations(second)))
}

func (suite *StoreTestSuite) testListEarlyBreak(t *testing.T) {
	store := suite.NewStore(t)
	seedTree(t, store)

	count := 0
	for _, err := range store.List(testContext(), storage.Path{}) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func (suite *StoreTestSuite) testListWithDelimiter(t *testing.T) {
	store := suite.NewStore(t)
	seedTree(t, store)

	res, err := store.ListWithDelimiter(testContext(), storage.Path{})
	require.NoError(t, err)

	assert.Equal(t, []string{"root.txt"}, locations(res.Objects))

	var prefixes []string
	for _, p := range res.CommonPrefixes {
		prefixes = append(prefixes, p.String())
	}
	assert.Equal(t, []string{"_delta_log", "part=a", "part=ab"}, sorted(prefixes))

	res, err = store.ListWithDelimiter(testContext(), path(t, "part=a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"part=a/file-0.parquet", "part=a/file-1.parquet"}, sorted(locations(res.Objects)))
	assert.Empty(t, res.CommonPrefixes)
}

func (suite *StoreTestSuite) testListWithDelimiterMissing(t *testing.T) {
	store := suite.NewStore(t)

	res, err := store.ListWithDelimiter(testContext(), path(t, "nothing/here"))
	require.NoError(t, err)
	assert.Empty(t, res.Objects)
	assert.Empty(t, res.CommonPrefixes)
}
