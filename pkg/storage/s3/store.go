package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/storage"
)

// StoreName identifies the S3 backend in errors and descriptions.
const StoreName = "S3ObjectStore"

// maxReadAttempts bounds the retries of a read racing overwrites.
const maxReadAttempts = 8

var errObjectChanged = errors.New("object changed between head and read")

// API is the subset of the S3 client used by S3Store.
//
// *s3.Client implements it.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// S3Store implements storage.ObjectStore on an S3 bucket.
//
// Object keys are the logical paths themselves: the store is rooted at the
// bucket and the factory hands the URL key prefix back as the root path.
//
// Conditional Writes:
// With conditional puts enabled, PutModeCreate sends If-None-Match: * and
// PutModeUpdate sends If-Match, so S3 arbitrates concurrent writers.
// CopyIfNotExists and RenameIfNotExists are built on the same conditional
// put. With conditional puts disabled all of them return ErrNotSupported.
//
// Thread Safety:
// S3Store holds no mutable state and is safe for concurrent use.
type S3Store struct {
	client      API
	bucket      string
	conditional bool
	partSize    int64
}

// Config configures NewS3Store.
type Config struct {
	// Client is the configured S3 client
	Client API

	// Bucket is the S3 bucket name
	Bucket string

	// ConditionalPut enables If-None-Match/If-Match conditional writes
	ConditionalPut bool

	// PartSize is the multipart flush size (default: 5 MiB)
	PartSize int64

	// SkipBucketCheck skips the HeadBucket probe
	SkipBucketCheck bool
}

// NewS3Store creates a store over cfg.Bucket.
//
// The bucket must already exist; it is probed with HeadBucket unless
// cfg.SkipBucketCheck is set.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize < minPartSize {
		partSize = minPartSize
	}

	if !cfg.SkipBucketCheck {
		if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
			return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &S3Store{
		client:      cfg.Client,
		bucket:      cfg.Bucket,
		conditional: cfg.ConditionalPut,
		partSize:    partSize,
	}, nil
}

func (s *S3Store) String() string {
	return fmt.Sprintf("%s(s3://%s)", StoreName, s.bucket)
}

// Bucket returns the bucket the store writes to.
func (s *S3Store) Bucket() string {
	return s.bucket
}

// ============================================================================
// Key Mapping and Errors
// ============================================================================

func objectKey(location storage.Path) string {
	return location.String()
}

// listPrefix returns the key prefix matching location and everything below
// it on segment boundaries.
func listPrefix(location storage.Path) string {
	if location.IsRoot() {
		return ""
	}
	return location.String() + "/"
}

// copySource renders the URL-encoded CopySource header of location.
func (s *S3Store) copySource(location storage.Path) string {
	parts := location.Parts()
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return s.bucket + "/" + strings.Join(parts, "/")
}

// mapError translates an SDK failure into a StorageError.
//
// create selects the classification of failed conditional writes: a
// create-if-absent that loses reports ErrAlreadyExists, an ETag update
// reports ErrPrecondition.
func mapError(err error, location storage.Path, create bool) error {
	if err == nil {
		return nil
	}
	var se *storage.StorageError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	loc := location.String()

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return storage.NewError(storage.ErrNotFound, StoreName, loc, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return storage.NewError(storage.ErrNotFound, StoreName, loc, err)
		case "PreconditionFailed", "ConditionalRequestConflict":
			if create {
				return storage.NewError(storage.ErrAlreadyExists, StoreName, loc, err)
			}
			return storage.NewError(storage.ErrPrecondition, StoreName, loc, err)
		case "NotModified":
			return storage.NewError(storage.ErrNotModified, StoreName, loc, err)
		case "InvalidRange":
			return storage.NewError(storage.ErrRangeNotSatisfiable, StoreName, loc, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return storage.NewError(storage.ErrPermissionDenied, StoreName, loc, err)
		case "NotImplemented":
			return storage.NewError(storage.ErrNotSupported, StoreName, loc, err)
		}
	}
	return storage.NewError(storage.ErrIO, StoreName, loc, err)
}

// ============================================================================
// Writes
// ============================================================================

func (s *S3Store) Put(ctx context.Context, location storage.Path, payload []byte) (storage.PutResult, error) {
	return s.PutOpts(ctx, location, payload, storage.PutOptions{})
}

func (s *S3Store) PutOpts(ctx context.Context, location storage.Path, payload []byte, opts storage.PutOptions) (storage.PutResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.PutResult{}, err
	}
	if location.IsRoot() {
		return storage.PutResult{}, storage.Errorf(storage.ErrInvalidPath, StoreName, "", "cannot write to the root")
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey(location)),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
	}

	switch opts.Mode {
	case storage.PutModeOverwrite:
	case storage.PutModeCreate:
		if !s.conditional {
			return storage.PutResult{}, storage.NotSupported(StoreName, "put if-not-exists without conditional puts")
		}
		input.IfNoneMatch = aws.String("*")
	case storage.PutModeUpdate:
		if !s.conditional {
			return storage.PutResult{}, storage.NotSupported(StoreName, "put update without conditional puts")
		}
		input.IfMatch = aws.String(opts.ETag)
	default:
		return storage.PutResult{}, storage.Errorf(storage.ErrIO, StoreName, location.String(), "unknown put mode %s", opts.Mode)
	}

	out, err := s.client.PutObject(ctx, input)
	if err != nil {
		return storage.PutResult{}, mapError(err, location, opts.Mode == storage.PutModeCreate)
	}
	return storage.PutResult{ETag: aws.ToString(out.ETag), Version: aws.ToString(out.VersionId)}, nil
}

func (s *S3Store) PutMultipartOpts(ctx context.Context, location storage.Path, opts storage.PutMultipartOptions) (storage.MultipartUpload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if location.IsRoot() {
		return nil, storage.Errorf(storage.ErrInvalidPath, StoreName, "", "cannot write to the root")
	}
	return &multipartUpload{
		store:      s,
		location:   location,
		attributes: opts.Attributes,
	}, nil
}

// Delete removes the object at location.
//
// S3 deletes are idempotent, so existence is checked first to report
// ErrNotFound for missing objects.
func (s *S3Store) Delete(ctx context.Context, location storage.Path) error {
	if _, err := s.Head(ctx, location); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(location)),
	})
	return mapError(err, location, false)
}

// ============================================================================
// Reads
// ============================================================================

func (s *S3Store) Get(ctx context.Context, location storage.Path) (*storage.GetResult, error) {
	return s.GetOpts(ctx, location, storage.GetOptions{})
}

// GetOpts evaluates opts against a HeadObject response, then reads the
// resolved range pinned to the observed ETag. A read that loses the pin to
// a concurrent overwrite starts over, up to maxReadAttempts times.
func (s *S3Store) GetOpts(ctx context.Context, location storage.Path, opts storage.GetOptions) (*storage.GetResult, error) {
	var err error
	for attempt := 1; attempt <= maxReadAttempts; attempt++ {
		var res *storage.GetResult
		res, err = s.getOnce(ctx, location, opts)
		if !errors.Is(err, errObjectChanged) {
			return res, err
		}
		logger.Debug("S3 object %s changed during read, attempt %d/%d", location, attempt, maxReadAttempts)
	}
	return nil, storage.NewError(storage.ErrIO, StoreName, location.String(), err)
}

func (s *S3Store) getOnce(ctx context.Context, location storage.Path, opts storage.GetOptions) (*storage.GetResult, error) {
	meta, err := s.Head(ctx, location)
	if err != nil {
		return nil, err
	}
	if err := opts.CheckPreconditions(meta); err != nil {
		return nil, err
	}

	start, end, err := opts.Range.Resolve(meta.Size)
	if err != nil {
		return nil, storage.NewError(storage.ErrRangeNotSatisfiable, StoreName, location.String(), err)
	}

	res := &storage.GetResult{Meta: meta, Start: start, End: end}
	if opts.Head {
		return res, nil
	}
	if start == end {
		res.Body = io.NopCloser(bytes.NewReader(nil))
		return res, nil
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(location)),
	}
	if meta.ETag != "" {
		input.IfMatch = aws.String(meta.ETag)
	}
	if start != 0 || end != meta.Size {
		input.Range = aws.String(storage.Bounded(start, end).HTTPHeader())
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		if errors.Is(mapError(err, location, false), storage.ErrPrecondition) {
			return nil, fmt.Errorf("%w: %w", errObjectChanged, err)
		}
		return nil, mapError(err, location, false)
	}
	res.Body = out.Body
	return res, nil
}

func (s *S3Store) GetRange(ctx context.Context, location storage.Path, r storage.GetRange) ([]byte, error) {
	res, err := s.GetOpts(ctx, location, storage.GetOptions{Range: r})
	if err != nil {
		return nil, err
	}
	data, err := res.Bytes()
	if err != nil {
		return nil, mapError(err, location, false)
	}
	return data, nil
}

func (s *S3Store) Head(ctx context.Context, location storage.Path) (storage.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return storage.ObjectMeta{}, err
	}
	if location.IsRoot() {
		return storage.ObjectMeta{}, storage.Errorf(storage.ErrNotFound, StoreName, "", "the root is not an object")
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(location)),
	})
	if err != nil {
		return storage.ObjectMeta{}, mapError(err, location, false)
	}

	return storage.ObjectMeta{
		Location:     location,
		LastModified: aws.ToTime(out.LastModified),
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         aws.ToString(out.ETag),
		Version:      aws.ToString(out.VersionId),
	}, nil
}

// ============================================================================
// Listing
// ============================================================================

// List pages through ListObjectsV2 as the sequence is consumed.
//
// Keys that are not valid logical paths (directory markers, "a//b") are
// skipped.
func (s *S3Store) List(ctx context.Context, prefix storage.Path) iter.Seq2[storage.ObjectMeta, error] {
	return storage.ListSeq(func(yield func(storage.ObjectMeta) bool) error {
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.bucket),
			Prefix: aws.String(listPrefix(prefix)),
		})

		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return mapError(err, prefix, false)
			}
			for _, obj := range page.Contents {
				location, ok := parseKey(aws.ToString(obj.Key))
				if !ok {
					continue
				}
				meta := storage.ObjectMeta{
					Location:     location,
					LastModified: aws.ToTime(obj.LastModified),
					Size:         aws.ToInt64(obj.Size),
					ETag:         aws.ToString(obj.ETag),
				}
				if !yield(meta) {
					return nil
				}
			}
		}
		return nil
	})
}

func (s *S3Store) ListWithDelimiter(ctx context.Context, prefix storage.Path) (*storage.ListResult, error) {
	result := &storage.ListResult{}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(listPrefix(prefix)),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, prefix, false)
		}
		for _, cp := range page.CommonPrefixes {
			if location, ok := parseKey(strings.TrimSuffix(aws.ToString(cp.Prefix), "/")); ok {
				result.CommonPrefixes = append(result.CommonPrefixes, location)
			}
		}
		for _, obj := range page.Contents {
			location, ok := parseKey(aws.ToString(obj.Key))
			if !ok {
				continue
			}
			result.Objects = append(result.Objects, storage.ObjectMeta{
				Location:     location,
				LastModified: aws.ToTime(obj.LastModified),
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
			})
		}
	}
	return result, nil
}

// parseKey maps an object key back to a logical path. Keys that would not
// round-trip are rejected.
func parseKey(key string) (storage.Path, bool) {
	location, err := storage.ParsePath(key)
	if err != nil || location.IsRoot() || location.String() != key {
		return storage.Path{}, false
	}
	return location, true
}

// ============================================================================
// Copy and Rename
// ============================================================================

func (s *S3Store) Copy(ctx context.Context, from, to storage.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to.IsRoot() {
		return storage.Errorf(storage.ErrInvalidPath, StoreName, "", "cannot write to the root")
	}

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(objectKey(to)),
		CopySource: aws.String(s.copySource(from)),
	})
	return mapError(err, from, false)
}

// CopyIfNotExists reads from and publishes it at to with a create-if-absent
// conditional put.
func (s *S3Store) CopyIfNotExists(ctx context.Context, from, to storage.Path) error {
	if !s.conditional {
		return storage.NotSupported(StoreName, "copy if-not-exists without conditional puts")
	}

	res, err := s.Get(ctx, from)
	if err != nil {
		return err
	}
	payload, err := res.Bytes()
	if err != nil {
		return mapError(err, from, false)
	}

	_, err = s.PutOpts(ctx, to, payload, storage.PutOptions{Mode: storage.PutModeCreate})
	return err
}

// RenameIfNotExists is CopyIfNotExists followed by removing from.
//
// The destination is published atomically; a failure to remove the source
// leaves both objects in place and is reported to the caller.
func (s *S3Store) RenameIfNotExists(ctx context.Context, from, to storage.Path) error {
	if err := s.CopyIfNotExists(ctx, from, to); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(from)),
	})
	if err != nil {
		logger.Warn("S3 rename published %s but left source %s behind: %v", to, from, err)
		return mapError(err, from, false)
	}
	return nil
}
