package testing

import (
	"context"
	"testing"

	"github.com/marmos91/tablestore/pkg/storage"
)

// StoreTestSuite is a comprehensive test suite for ObjectStore implementations.
// It tests the interface contract, not implementation details, making it reusable
// across different implementations (memory, badger, HDFS, S3).
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &storagetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) storage.ObjectStore {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh, empty ObjectStore
	// for each test. This ensures test isolation. Stores holding resources
	// should register their cleanup with t.Cleanup.
	NewStore func(t *testing.T) storage.ObjectStore

	// SupportsUpdate is set for backends implementing storage.PutModeUpdate.
	SupportsUpdate bool

	// SupportsMultipart is set for backends implementing PutMultipartOpts.
	// Other backends must fail with ErrNotSupported and write nothing.
	SupportsMultipart bool

	// Racers is the number of concurrent writers used by the concurrency
	// tests (default: 16).
	Racers int
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("ConditionalOperations", suite.RunConditionalTests)
	t.Run("RangeReads", suite.RunRangeTests)
	t.Run("Listing", suite.RunListTests)
	t.Run("CopyAndRename", suite.RunCopyRenameTests)
	t.Run("Concurrency", suite.RunConcurrencyTests)
	t.Run("Multipart", suite.RunMultipartTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

func (suite *StoreTestSuite) racers() int {
	if suite.Racers > 0 {
		return suite.Racers
	}
	return 16
}
