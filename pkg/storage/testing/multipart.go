package testing

import (
	"bytes"
	"testing"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/stretchr/testify/require"
)

// RunMultipartTests executes the multipart upload tests.
func (suite *StoreTestSuite) RunMultipartTests(t *testing.T) {
	if !suite.SupportsMultipart {
		t.Run("NotSupported", suite.testMultipartNotSupported)
		return
	}
	t.Run("Complete", suite.testMultipartComplete)
	t.Run("Abort", suite.testMultipartAbort)
}

func (suite *StoreTestSuite) testMultipartNotSupported(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "multipart/object")

	upload, err := store.PutMultipartOpts(testContext(), location, storage.PutMultipartOptions{})
	AssertErrorIs(t, storage.ErrNotSupported, err)
	require.Nil(t, upload)

	assertNotExists(t, store, location)
	require.Empty(t, mustList(t, store, storage.Path{}), "nothing may be written")
}

func (suite *StoreTestSuite) testMultipartComplete(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "multipart/object")
	parts := [][]byte{generateTestData(1024), []byte("second part"), generateTestData(7)}

	upload, err := store.PutMultipartOpts(testContext(), location, storage.PutMultipartOptions{})
	require.NoError(t, err)
	for _, part := range parts {
		require.NoError(t, upload.PutPart(testContext(), part))
	}
	assertNotExists(t, store, location)

	_, err = upload.Complete(testContext())
	require.NoError(t, err)

	assertObjectEquals(t, store, location, bytes.Join(parts, nil))
}

func (suite *StoreTestSuite) testMultipartAbort(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "multipart/aborted")

	upload, err := store.PutMultipartOpts(testContext(), location, storage.PutMultipartOptions{})
	require.NoError(t, err)
	require.NoError(t, upload.PutPart(testContext(), []byte("discarded")))
	require.NoError(t, upload.Abort(testContext()))

	assertNotExists(t, store, location)
}
