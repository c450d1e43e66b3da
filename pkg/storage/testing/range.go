package testing

import (
	"testing"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRangeTests executes the byte range read tests.
func (suite *StoreTestSuite) RunRangeTests(t *testing.T) {
	t.Run("GetRange_Bounded", suite.testGetRangeBounded)
	t.Run("GetRange_WholeObject", suite.testGetRangeWholeObject)
	t.Run("GetRange_Offset", suite.testGetRangeOffset)
	t.Run("GetRange_Suffix", suite.testGetRangeSuffix)
	t.Run("GetRange_BeyondEnd", suite.testGetRangeBeyondEnd)
	t.Run("GetRange_NotFound", suite.testGetRangeNotFound)
	t.Run("GetOpts_RangeBounds", suite.testGetOptsRangeBounds)
}

func (suite *StoreTestSuite) testGetRangeBounded(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "range/bounded")
	testData := generateTestData(1000)
	mustPut(t, store, location, testData)

	data, err := store.GetRange(testContext(), location, storage.Bounded(100, 250))
	require.NoError(t, err)
	assert.Equal(t, testData[100:250], data)
	assert.Len(t, data, 150)
}

func (suite *StoreTestSuite) testGetRangeWholeObject(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "range/whole")
	testData := generateTestData(64)
	mustPut(t, store, location, testData)

	data, err := store.GetRange(testContext(), location, storage.Bounded(0, 64))
	require.NoError(t, err)
	assert.Equal(t, testData, data)
}

func (suite *StoreTestSuite) testGetRangeOffset(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "range/offset")
	testData := generateTestData(300)
	mustPut(t, store, location, testData)

	data, err := store.GetRange(testContext(), location, storage.Offset(200))
	require.NoError(t, err)
	assert.Equal(t, testData[200:], data)
}

func (suite *StoreTestSuite) testGetRangeSuffix(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "range/suffix")
	testData := generateTestData(300)
	mustPut(t, store, location, testData)

	data, err := store.GetRange(testContext(), location, storage.Suffix(8))
	require.NoError(t, err)
	assert.Equal(t, testData[292:], data)
}

func (suite *StoreTestSuite) testGetRangeBeyondEnd(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "range/small")
	mustPut(t, store, location, generateTestData(10))

	_, err := store.GetRange(testContext(), location, storage.Bounded(5, 20))
	AssertErrorIs(t, storage.ErrRangeNotSatisfiable, err)

	_, err = store.GetRange(testContext(), location, storage.Bounded(11, 12))
	AssertErrorIs(t, storage.ErrRangeNotSatisfiable, err)
}

func (suite *StoreTestSuite) testGetRangeNotFound(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.GetRange(testContext(), path(t, "range/missing"), storage.Bounded(0, 1))
	AssertErrorIs(t, storage.ErrNotFound, err)
}

func (suite *StoreTestSuite) testGetOptsRangeBounds(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "range/opts")
	testData := generateTestData(128)
	mustPut(t, store, location, testData)

	res, err := store.GetOpts(testContext(), location, storage.GetOptions{Range: storage.Bounded(16, 48)})
	require.NoError(t, err)
	assert.Equal(t, int64(16), res.Start)
	assert.Equal(t, int64(48), res.End)
	assert.Equal(t, int64(128), res.Meta.Size, "metadata describes the whole object")

	data, err := res.Bytes()
	require.NoError(t, err)
	assert.Equal(t, testData[16:48], data)
}
