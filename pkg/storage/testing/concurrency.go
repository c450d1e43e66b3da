package testing

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunConcurrencyTests executes the linearizability tests for the
// conditional operations.
func (suite *StoreTestSuite) RunConcurrencyTests(t *testing.T) {
	t.Run("RenameIfNotExists_SingleWinner", suite.testRenameIfNotExistsSingleWinner)
	t.Run("CopyIfNotExists_SingleWinner", suite.testCopyIfNotExistsSingleWinner)
	t.Run("PutCreate_SingleWinner", suite.testPutCreateSingleWinner)
	t.Run("ConcurrentReadersAndWriters", suite.testConcurrentReadersAndWriters)
}

// race runs op for every racer concurrently and returns the index of the
// single winner. Every loser must fail with ErrAlreadyExists.
func race(t *testing.T, racers int, op func(i int) error) int {
	t.Helper()

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, racers)
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = op(i)
		}(i)
	}
	close(start)
	wg.Wait()

	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			require.Equal(t, -1, winner, "more than one racer succeeded (%d and %d)", winner, i)
			winner = i
		case errors.Is(err, storage.ErrAlreadyExists):
		default:
			t.Fatalf("racer %d failed with unexpected error: %v", i, err)
		}
	}
	require.NotEqual(t, -1, winner, "no racer succeeded")
	return winner
}

func (suite *StoreTestSuite) testRenameIfNotExistsSingleWinner(t *testing.T) {
	store := suite.NewStore(t)
	racers := suite.racers()
	dest := path(t, "_delta_log/00000000000000000007.json")

	sources := make([]storage.Path, racers)
	for i := range sources {
		sources[i] = path(t, fmt.Sprintf("_delta_log/_commit_%03d.json.tmp", i))
		mustPut(t, store, sources[i], payloadFor(i))
	}

	winner := race(t, racers, func(i int) error {
		return store.RenameIfNotExists(testContext(), sources[i], dest)
	})

	assertObjectEquals(t, store, dest, payloadFor(winner))
	assertNotExists(t, store, sources[winner])
	for i, src := range sources {
		if i != winner {
			assertObjectEquals(t, store, src, payloadFor(i))
		}
	}
}

func (suite *StoreTestSuite) testCopyIfNotExistsSingleWinner(t *testing.T) {
	store := suite.NewStore(t)
	racers := suite.racers()
	dest := path(t, "copy-race/dest")

	sources := make([]storage.Path, racers)
	for i := range sources {
		sources[i] = path(t, fmt.Sprintf("copy-race/src-%03d", i))
		mustPut(t, store, sources[i], payloadFor(i))
	}

	winner := race(t, racers, func(i int) error {
		return store.CopyIfNotExists(testContext(), sources[i], dest)
	})

	assertObjectEquals(t, store, dest, payloadFor(winner))
}

func (suite *StoreTestSuite) testPutCreateSingleWinner(t *testing.T) {
	store := suite.NewStore(t)
	dest := path(t, "create-race/dest")

	winner := race(t, suite.racers(), func(i int) error {
		_, err := store.PutOpts(testContext(), dest, payloadFor(i), storage.PutOptions{Mode: storage.PutModeCreate})
		return err
	})

	assertObjectEquals(t, store, dest, payloadFor(winner))
}

func (suite *StoreTestSuite) testConcurrentReadersAndWriters(t *testing.T) {
	store := suite.NewStore(t)
	location := path(t, "shared/object")
	mustPut(t, store, location, payloadFor(0))

	var wg sync.WaitGroup
	for i := 0; i < suite.racers(); i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := store.Put(testContext(), location, payloadFor(i))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			res, err := store.Get(testContext(), location)
			if !assert.NoError(t, err) {
				return
			}
			data, err := res.Bytes()
			assert.NoError(t, err)
			// Writes publish atomically: a reader sees one complete payload.
			assert.Len(t, data, len(payloadFor(0)))
		}()
	}
	wg.Wait()
}
