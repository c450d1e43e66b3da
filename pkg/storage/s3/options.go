package s3

import (
	"fmt"
	"strings"

	"github.com/marmos91/tablestore/pkg/storage"
)

const (
	// defaultMaxRetries is the retry budget of the S3 client
	// (the AWS default is 3 attempts)
	defaultMaxRetries = 10

	// minPartSize is the smallest part S3 accepts for every part but the last
	minPartSize = 5 << 20

	conditionalPutETag     = "etag"
	conditionalPutDisabled = "disabled"
)

// Options are the S3-specific storage options.
type Options struct {
	// Region is the AWS region of the bucket (required unless the default
	// credential chain provides one)
	Region string `mapstructure:"aws_region"`

	// Endpoint is a custom S3 endpoint (MinIO, Localstack, ...)
	Endpoint string `mapstructure:"aws_endpoint_url"`

	// AccessKeyID and SecretAccessKey select static credentials.
	// When empty the default credential chain is used.
	AccessKeyID     string `mapstructure:"aws_access_key_id"`
	SecretAccessKey string `mapstructure:"aws_secret_access_key"`
	SessionToken    string `mapstructure:"aws_session_token"`

	// ForcePathStyle addresses buckets as <endpoint>/<bucket>.
	// It is implied by a custom endpoint.
	ForcePathStyle bool `mapstructure:"aws_force_path_style"`

	// MaxRetries is the retry budget of every request (default: 10)
	MaxRetries int `mapstructure:"aws_max_retries"`

	// ConditionalPut selects how create-if-absent writes are implemented:
	// "etag" uses If-None-Match/If-Match conditional requests, "disabled"
	// reports them as not supported (default: "etag")
	ConditionalPut string `mapstructure:"aws_conditional_put"`

	// SkipBucketCheck skips the HeadBucket probe at construction
	SkipBucketCheck bool `mapstructure:"aws_skip_bucket_check"`

	// PartSize is the size multipart writes are flushed at (default and
	// minimum: 5 MiB)
	PartSize int64 `mapstructure:"aws_multipart_part_size"`
}

// ParseOptions decodes and validates the S3 options out of opts.
func ParseOptions(opts storage.StorageOptions) (Options, error) {
	var o Options
	if err := opts.Decode(&o); err != nil {
		return Options{}, err
	}

	o.ConditionalPut = strings.ToLower(strings.TrimSpace(o.ConditionalPut))
	switch o.ConditionalPut {
	case "":
		o.ConditionalPut = conditionalPutETag
	case conditionalPutETag, conditionalPutDisabled:
	default:
		return Options{}, fmt.Errorf("aws_conditional_put: unsupported value %q (expected %q or %q)",
			o.ConditionalPut, conditionalPutETag, conditionalPutDisabled)
	}

	if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.MaxRetries < 0 {
		return Options{}, fmt.Errorf("aws_max_retries: must be positive, got %d", o.MaxRetries)
	}

	if o.PartSize < minPartSize {
		o.PartSize = minPartSize
	}

	if (o.AccessKeyID == "") != (o.SecretAccessKey == "") {
		return Options{}, fmt.Errorf("aws_access_key_id and aws_secret_access_key must be set together")
	}
	return o, nil
}

func (o Options) conditional() bool {
	return o.ConditionalPut == conditionalPutETag
}
