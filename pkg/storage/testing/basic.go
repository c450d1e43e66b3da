package testing

import (
	"testing"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes the put/get/head/delete tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Put_Get_RoundTrip", suite.testPutGetRoundTrip)
	t.Run("Put_Overwrite", suite.testPutOverwrite)
	t.Run("Put_EmptyPayload", suite.testPutEmptyPayload)
	t.Run("Put_Nested", suite.testPutNested)
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("Head_Metadata", suite.testHeadMetadata)
	t.Run("Head_NotFound", suite.testHeadNotFound)
	t.Run("Get_HeadOnly", suite.testGetHeadOnly)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_NotFound", suite.testDeleteNotFound)
	t.Run("String", suite.testString)
}

// ============================================================================
// Put / Get Tests
// ============================================================================

func (suite *StoreTestSuite) testPutGetRoundTrip(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "data/part-00000.parquet")
	testData := generateTestData(4096)

	mustPut(t, store, location, testData)

	assertObjectEquals(t, store, location, testData)
}

func (suite *StoreTestSuite) testPutOverwrite(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "overwrite.bin")
	oldData := []byte("Old data")
	newData := []byte("New data that is longer")

	mustPut(t, store, location, oldData)
	assertObjectEquals(t, store, location, oldData)

	mustPut(t, store, location, newData)
	assertObjectEquals(t, store, location, newData)
	assert.Equal(t, int64(len(newData)), mustHead(t, store, location).Size)
}

func (suite *StoreTestSuite) testPutEmptyPayload(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "empty")

	mustPut(t, store, location, nil)

	assert.Empty(t, mustGet(t, store, location))
	assert.Equal(t, int64(0), mustHead(t, store, location).Size)
}

func (suite *StoreTestSuite) testPutNested(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "year=2024/month=01/day=15/part-0.parquet")

	mustPut(t, store, location, []byte("nested"))

	assertObjectEquals(t, store, location, []byte("nested"))
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.Get(testContext(), path(t, "missing"))
	AssertErrorIs(t, storage.ErrNotFound, err)
}

// ============================================================================
// Head Tests
// ============================================================================

func (suite *StoreTestSuite) testHeadMetadata(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "dir/meta.json")
	testData := []byte(`{"commitInfo":{}}`)

	res := mustPut(t, store, location, testData)
	meta := mustHead(t, store, location)

	assert.Equal(t, location, meta.Location)
	assert.Equal(t, int64(len(testData)), meta.Size)
	assert.False(t, meta.LastModified.IsZero(), "LastModified should be set")
	if res.ETag != "" {
		assert.Equal(t, res.ETag, meta.ETag, "Put and Head should agree on the ETag")
	}
}

func (suite *StoreTestSuite) testHeadNotFound(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.Head(testContext(), path(t, "missing/meta.json"))
	AssertErrorIs(t, storage.ErrNotFound, err)
}

func (suite *StoreTestSuite) testGetHeadOnly(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "head-only")
	mustPut(t, store, location, []byte("body"))

	res, err := store.GetOpts(testContext(), location, storage.GetOptions{Head: true})
	require.NoError(t, err)
	assert.Nil(t, res.Body, "Head requests return no body")
	assert.Equal(t, int64(4), res.Meta.Size)
}

// ============================================================================
// Delete Tests
// ============================================================================

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "to-delete")
	mustPut(t, store, location, []byte("bye"))

	require.NoError(t, store.Delete(testContext(), location))

	assertNotExists(t, store, location)
}

func (suite *StoreTestSuite) testDeleteNotFound(t *testing.T) {
	store := suite.NewStore(t)

	err := store.Delete(testContext(), path(t, "never-written"))
	AssertErrorIs(t, storage.ErrNotFound, err)
}

func (suite *StoreTestSuite) testString(t *testing.T) {
	store := suite.NewStore(t)
	assert.NotEmpty(t, store.String())
}
