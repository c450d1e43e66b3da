package testing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorIs checks if the error matches the expected error using errors.Is.
func AssertErrorIs(t *testing.T, expected error, actual error) {
	t.Helper()
	if !errors.Is(actual, expected) {
		t.Errorf("Expected error %v, got %v", expected, actual)
	}
}

// path parses a test path and fails the test if it is invalid.
func path(t *testing.T, s string) storage.Path {
	t.Helper()
	p, err := storage.ParsePath(s)
	require.NoError(t, err, "ParsePath(%q) should succeed", s)
	return p
}

// mustPut writes an object and fails the test if it errors.
func mustPut(t *testing.T, store storage.ObjectStore, location storage.Path, data []byte) storage.PutResult {
	t.Helper()
	res, err := store.Put(testContext(), location, data)
	require.NoError(t, err, "Put(%s) should succeed", location)
	return res
}

// mustGet reads a whole object and fails the test if it errors.
func mustGet(t *testing.T, store storage.ObjectStore, location storage.Path) []byte {
	t.Helper()
	res, err := store.Get(testContext(), location)
	require.NoError(t, err, "Get(%s) should succeed", location)

	data, err := res.Bytes()
	require.NoError(t, err, "Reading body should succeed")
	return data
}

// mustHead reads object metadata and fails the test if it errors.
func mustHead(t *testing.T, store storage.ObjectStore, location storage.Path) storage.ObjectMeta {
	t.Helper()
	meta, err := store.Head(testContext(), location)
	require.NoError(t, err, "Head(%s) should succeed", location)
	return meta
}

// mustList collects a recursive listing and fails the test if it errors.
func mustList(t *testing.T, store storage.ObjectStore, prefix storage.Path) []storage.ObjectMeta {
	t.Helper()
	metas, err := storage.Collect(store.List(testContext(), prefix))
	require.NoError(t, err, "List(%s) should succeed", prefix)
	return metas
}

// assertObjectEquals checks if the object matches expected data.
func assertObjectEquals(t *testing.T, store storage.ObjectStore, location storage.Path, expected []byte) {
	t.Helper()
	actual := mustGet(t, store, location)
	assert.Equal(t, expected, actual, "Object data mismatch at %s", location)
}

// assertNotExists checks that location has no object.
func assertNotExists(t *testing.T, store storage.ObjectStore, location storage.Path) {
	t.Helper()
	_, err := store.Head(testContext(), location)
	AssertErrorIs(t, storage.ErrNotFound, err)
}

// locations extracts the sorted string locations of metas.
func locations(metas []storage.ObjectMeta) []string {
	out := make([]string, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.Location.String())
	}
	return out
}

// generateTestData creates test data of specified size.
func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := 0; i < size; i++ {
		data[i] = byte(i % 256)
	}
	return data
}

// payloadFor returns a payload unique to racer i.
func payloadFor(i int) []byte {
	return []byte(fmt.Sprintf("payload from racer %03d", i))
}
