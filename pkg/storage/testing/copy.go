package testing

import (
	"testing"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/stretchr/testify/require"
)

// RunCopyRenameTests executes the copy and rename tests.
func (suite *StoreTestSuite) RunCopyRenameTests(t *testing.T) {
	t.Run("Copy_Basic", suite.testCopyBasic)
	t.Run("Copy_Overwrites", suite.testCopyOverwrites)
	t.Run("Copy_SourceNotFound", suite.testCopySourceNotFound)
	t.Run("CopyIfNotExists_Absent", suite.testCopyIfNotExistsAbsent)
	t.Run("CopyIfNotExists_Exists", suite.testCopyIfNotExistsExists)
	t.Run("RenameIfNotExists_Absent", suite.testRenameIfNotExistsAbsent)
	t.Run("RenameIfNotExists_Exists", suite.testRenameIfNotExistsExists)
	t.Run("RenameIfNotExists_SourceNotFound", suite.testRenameIfNotExistsSourceNotFound)
	t.Run("RenameIfNotExists_NewDirectory", suite.testRenameIfNotExistsNewDirectory)
}

func (suite *StoreTestSuite) testCopyBasic(t *testing.T) {
	store := suite.NewStore(t)
	from, to := path(t, "copy/src"), path(t, "copy/dst")
	mustPut(t, store, from, []byte("copied"))

	require.NoError(t, store.Copy(testContext(), from, to))

	assertObjectEquals(t, store, from, []byte("copied"))
	assertObjectEquals(t, store, to, []byte("copied"))
}

func (suite *StoreTestSuite) testCopyOverwrites(t *testing.T) {
	store := suite.NewStore(t)
	from, to := path(t, "copy/src"), path(t, "copy/dst")
	mustPut(t, store, from, []byte("new"))
	mustPut(t, store, to, []byte("old contents"))

	require.NoError(t, store.Copy(testContext(), from, to))

	assertObjectEquals(t, store, to, []byte("new"))
}

func (suite *StoreTestSuite) testCopySourceNotFound(t *testing.T) {
	store := suite.NewStore(t)

	err := store.Copy(testContext(), path(t, "copy/missing"), path(t, "copy/dst"))
	AssertErrorIs(t, storage.ErrNotFound, err)
}

func (suite *StoreTestSuite) testCopyIfNotExistsAbsent(t *testing.T) {
	store := suite.NewStore(t)
	from, to := path(t, "cine/src"), path(t, "cine/dst")
	mustPut(t, store, from, []byte("payload"))

	require.NoError(t, store.CopyIfNotExists(testContext(), from, to))

	assertObjectEquals(t, store, from, []byte("payload"))
	assertObjectEquals(t, store, to, []byte("payload"))
}

func (suite *StoreTestSuite) testCopyIfNotExistsExists(t *testing.T) {
	store := suite.NewStore(t)
	from, to := path(t, "cine/src"), path(t, "cine/dst")
	mustPut(t, store, from, []byte("payload"))
	mustPut(t, store, to, []byte("existing"))

	err := store.CopyIfNotExists(testContext(), from, to)
	AssertErrorIs(t, storage.ErrAlreadyExists, err)

	assertObjectEquals(t, store, to, []byte("existing"))
	assertObjectEquals(t, store, from, []byte("payload"))
}

func (suite *StoreTestSuite) testRenameIfNotExistsAbsent(t *testing.T) {
	store := suite.NewStore(t)
	from, to := path(t, "_delta_log/_commit_tmp.json.tmp"), path(t, "_delta_log/00000000000000000000.json")
	mustPut(t, store, from, []byte("X"))

	require.NoError(t, store.RenameIfNotExists(testContext(), from, to))

	assertObjectEquals(t, store, to, []byte("X"))
	assertNotExists(t, store, from)
}

func (suite *StoreTestSuite) testRenameIfNotExistsExists(t *testing.T) {
	store := suite.NewStore(t)
	from, to := path(t, "rine/a"), path(t, "rine/b")
	mustPut(t, store, from, []byte("X"))
	mustPut(t, store, to, []byte("Y"))

	err := store.RenameIfNotExists(testContext(), from, to)
	AssertErrorIs(t, storage.ErrAlreadyExists, err)

	assertObjectEquals(t, store, from, []byte("X"))
	assertObjectEquals(t, store, to, []byte("Y"))
}

func (suite *StoreTestSuite) testRenameIfNotExistsSourceNotFound(t *testing.T) {
	store := suite.NewStore(t)

	err := store.RenameIfNotExists(testContext(), path(t, "rine/missing"), path(t, "rine/b"))
	AssertErrorIs(t, storage.ErrNotFound, err)
	assertNotExists(t, store, path(t, "rine/b"))
}

func (suite *StoreTestSuite) testRenameIfNotExistsNewDirectory(t *testing.T) {
	store := suite.NewStore(t)
	from, to := path(t, "staging/file"), path(t, "published/deep/file")
	mustPut(t, store, from, []byte("moved"))

	require.NoError(t, store.RenameIfNotExists(testContext(), from, to))

	assertObjectEquals(t, store, to, []byte("moved"))
	assertNotExists(t, store, from)
}
