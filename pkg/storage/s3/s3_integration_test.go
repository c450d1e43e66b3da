//go:build integration
// +build integration

package s3

import (
	"context"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/marmos91/tablestore/pkg/storage"
	storagetesting "github.com/marmos91/tablestore/pkg/storage/testing"
	"github.com/stretchr/testify/require"
)

// TestS3Store_Integration runs the complete ObjectStore test suite against a
// real S3-compatible service (Localstack).
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/storage/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Store_Integration(t *testing.T) {
	ctx := context.Background()

	// ========================================================================
	// Setup: Create S3 client connected to Localstack
	// ========================================================================

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	opts, err := ParseOptions(storage.StorageOptions{
		"aws_region":            "us-east-1",
		"aws_endpoint_url":      endpoint,
		"aws_access_key_id":     "test",
		"aws_secret_access_key": "test",
	})
	require.NoError(t, err)

	api, err := NewClient(ctx, opts)
	require.NoError(t, err)
	client := api.(*s3.Client)

	// ========================================================================
	// Create test bucket
	// ========================================================================

	bucketName := "tablestore-test-bucket"

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(t, err, "failed to create test bucket")

	store, err := NewS3Store(ctx, Config{
		Client:         client,
		Bucket:         bucketName,
		ConditionalPut: true,
	})
	require.NoError(t, err)

	// Cleanup bucket after test
	defer func() {
		for meta, err := range store.List(ctx, storage.Path{}) {
			if err != nil {
				t.Logf("cleanup listing failed: %v", err)
				break
			}
			_ = store.Delete(ctx, meta.Location)
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucketName)})
	}()

	// ========================================================================
	// Run the suite, one key prefix per test
	// ========================================================================

	suite := &storagetesting.StoreTestSuite{
		NewStore: func(t *testing.T) storage.ObjectStore {
			return storage.NewPrefixStore(store, storage.MustParsePath("suite/"+uuid.NewString()))
		},
		SupportsUpdate:    true,
		SupportsMultipart: true,
		Racers:            8,
	}

	suite.Run(t)
}
