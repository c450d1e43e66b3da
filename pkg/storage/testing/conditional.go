package testing

import (
	"errors"
	"testing"
	"time"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConditionalTests executes the PutMode and conditional read tests.
func (suite *StoreTestSuite) RunConditionalTests(t *testing.T) {
	t.Run("PutCreate_Absent", suite.testPutCreateAbsent)
	t.Run("PutCreate_Exists", suite.testPutCreateExists)
	t.Run("PutUpdate", suite.testPutUpdate)
	t.Run("Get_IfMatch", suite.testGetIfMatch)
	t.Run("Get_IfNoneMatch", suite.testGetIfNoneMatch)
	t.Run("Get_IfModifiedSince", suite.testGetIfModifiedSince)
}

func (suite *StoreTestSuite) testPutCreateAbsent(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "_delta_log/00000000000000000000.json")

	_, err := store.PutOpts(testContext(), location, []byte("v0"), storage.PutOptions{Mode: storage.PutModeCreate})
	require.NoError(t, err)

	assertObjectEquals(t, store, location, []byte("v0"))
}

func (suite *StoreTestSuite) testPutCreateExists(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "_delta_log/00000000000000000000.json")
	mustPut(t, store, location, []byte("original"))

	_, err := store.PutOpts(testContext(), location, []byte("intruder"), storage.PutOptions{Mode: storage.PutModeCreate})
	AssertErrorIs(t, storage.ErrAlreadyExists, err)

	assertObjectEquals(t, store, location, []byte("original"))
}

func (suite *StoreTestSuite) testPutUpdate(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "_last_checkpoint")
	first := mustPut(t, store, location, []byte("one"))

	if !suite.SupportsUpdate {
		_, err := store.PutOpts(testContext(), location, []byte("two"), storage.PutOptions{Mode: storage.PutModeUpdate, ETag: first.ETag})
		AssertErrorIs(t, storage.ErrNotSupported, err)
		assertObjectEquals(t, store, location, []byte("one"))
		return
	}

	_, err := store.PutOpts(testContext(), location, []byte("two"), storage.PutOptions{Mode: storage.PutModeUpdate, ETag: first.ETag})
	require.NoError(t, err, "update with the current ETag should succeed")
	assertObjectEquals(t, store, location, []byte("two"))

	_, err = store.PutOpts(testContext(), location, []byte("three"), storage.PutOptions{Mode: storage.PutModeUpdate, ETag: first.ETag})
	AssertErrorIs(t, storage.ErrPrecondition, err)
	assertObjectEquals(t, store, location, []byte("two"))
}

func (suite *StoreTestSuite) testGetIfMatch(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "if-match")
	mustPut(t, store, location, []byte("content"))
	meta := mustHead(t, store, location)

	res, err := store.GetOpts(testContext(), location, storage.GetOptions{IfMatch: meta.ETag})
	require.NoError(t, err)
	data, err := res.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)

	_, err = store.GetOpts(testContext(), location, storage.GetOptions{IfMatch: "not-the-etag"})
	AssertErrorIs(t, storage.ErrPrecondition, err)
}

func (suite *StoreTestSuite) testGetIfNoneMatch(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "if-none-match")
	mustPut(t, store, location, []byte("content"))
	meta := mustHead(t, store, location)

	_, err := store.GetOpts(testContext(), location, storage.GetOptions{IfNoneMatch: meta.ETag})
	AssertErrorIs(t, storage.ErrNotModified, err)

	res, err := store.GetOpts(testContext(), location, storage.GetOptions{IfNoneMatch: "not-the-etag", Head: true})
	require.NoError(t, err)
	assert.Equal(t, meta.Size, res.Meta.Size)
}

func (suite *StoreTestSuite) testGetIfModifiedSince(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "if-modified-since")
	mustPut(t, store, location, []byte("content"))
	meta := mustHead(t, store, location)

	_, err := store.GetOpts(testContext(), location, storage.GetOptions{IfModifiedSince: meta.LastModified.Add(time.Hour), Head: true})
	AssertErrorIs(t, storage.ErrNotModified, err)

	_, err = store.GetOpts(testContext(), location, storage.GetOptions{IfUnmodifiedSince: meta.LastModified.Add(-time.Hour), Head: true})
	AssertErrorIs(t, storage.ErrPrecondition, err)

	_, err = store.GetOpts(testContext(), location, storage.GetOptions{IfModifiedSince: meta.LastModified.Add(-time.Hour), Head: true})
	assert.False(t, errors.Is(err, storage.ErrNotModified), "object changed after the given time: %v", err)
}
