package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/logstore"
	"github.com/marmos91/tablestore/pkg/registry"
	"github.com/marmos91/tablestore/pkg/storage"
)

const (
	// SchemeS3 addresses a bucket: s3://<bucket>/<prefix>.
	SchemeS3 = "s3"

	// SchemeS3A is the Hadoop S3A spelling of SchemeS3.
	SchemeS3A = "s3a"
)

// Schemes are the URL schemes served by the S3 backend.
var Schemes = []string{SchemeS3, SchemeS3A}

// ClientFactory builds the S3 client for a set of options.
type ClientFactory func(ctx context.Context, opts Options) (API, error)

// NewClient builds an *s3.Client from opts.
//
// Region, endpoint and credentials fall back to the default AWS
// configuration chain when unset.
func NewClient(ctx context.Context, opts Options) (API, error) {
	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	if opts.Region != "" {
		configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))
	}

	// Static credentials if provided, otherwise the default credential chain
	if opts.AccessKeyID != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			opts.SessionToken,
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// MinIO and Localstack only serve path-style requests
			o.UsePathStyle = true
		}
		if opts.ForcePathStyle {
			o.UsePathStyle = true
		}
	})
	return client, nil
}

// Factory builds S3 stores and their log stores.
type Factory struct {
	newClient ClientFactory
}

// NewFactory creates a Factory building clients with NewClient.
func NewFactory() *Factory {
	return &Factory{newClient: NewClient}
}

// WithClientFactory returns a copy of f building clients with fn.
func (f *Factory) WithClientFactory(fn ClientFactory) *Factory {
	return &Factory{newClient: fn}
}

// ParseURLOpts builds a store over the bucket named by the URL host.
//
// The store is rooted at the bucket; the URL path is returned as the root
// Path so the caller scopes it to the table prefix.
func (f *Factory) ParseURLOpts(ctx context.Context, u *url.URL, opts storage.StorageOptions) (storage.ObjectStore, storage.Path, error) {
	if err := ctx.Err(); err != nil {
		return nil, storage.Path{}, err
	}

	scheme := registry.Key(u.Scheme)
	if scheme != SchemeS3 && scheme != SchemeS3A {
		return nil, storage.Path{}, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "unsupported scheme %q", u.Scheme)
	}
	if u.Opaque != "" || u.Host == "" {
		return nil, storage.Path{}, storage.Errorf(storage.ErrInvalidLocation, StoreName, u.String(), "expected s3://<bucket>/<prefix>")
	}

	root, err := storage.ParsePath(strings.Trim(u.Path, "/"))
	if err != nil {
		return nil, storage.Path{}, storage.NewError(storage.ErrInvalidLocation, StoreName, u.String(), err)
	}

	o, err := ParseOptions(opts)
	if err != nil {
		return nil, storage.Path{}, storage.NewError(storage.ErrConstructionFailure, StoreName, u.String(), err)
	}

	client, err := f.newClient(ctx, o)
	if err != nil {
		return nil, storage.Path{}, storage.NewError(storage.ErrConstructionFailure, StoreName, u.String(), err)
	}

	store, err := NewS3Store(ctx, Config{
		Client:          client,
		Bucket:          u.Host,
		ConditionalPut:  o.conditional(),
		PartSize:        o.PartSize,
		SkipBucketCheck: o.SkipBucketCheck,
	})
	if err != nil {
		return nil, storage.Path{}, storage.NewError(storage.ErrConstructionFailure, StoreName, u.String(), err)
	}

	logger.Info("S3 object store initialized: bucket=%s, region=%s, prefix=%s", u.Host, o.Region, root)
	return store, root, nil
}

func (f *Factory) WithOptions(store storage.ObjectStore, location *url.URL, opts storage.StorageOptions) (logstore.LogStore, error) {
	return logstore.NewDefaultLogStore(store, logstore.Config{Location: location, Options: opts}), nil
}

// RegisterHandlers registers the S3 backend under s3 and s3a in both global
// registries.
func RegisterHandlers() {
	f := NewFactory()
	for _, scheme := range Schemes {
		if err := storage.Factories().Insert(scheme, f); err != nil {
			logger.Error("Failed to register %s object store factory: %v", scheme, err)
		}
		if err := logstore.LogStores().Insert(scheme, f); err != nil {
			logger.Error("Failed to register %s log store factory: %v", scheme, err)
		}
	}
	logger.Debug("Registered %s handlers for schemes %v", StoreName, Schemes)
}
