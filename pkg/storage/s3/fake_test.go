package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeS3 is an in-process bucket implementing API with the S3 semantics the
// store relies on: conditional puts, ranged reads, paginated listings and
// the 5 MiB minimum part size.
type fakeS3 struct {
	bucket   string
	pageSize int

	mu      sync.Mutex
	objects map[string]fakeObject
	uploads map[string]map[int32][]byte
	seq     int
}

type fakeObject struct {
	data     []byte
	etag     string
	modified time.Time
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{
		bucket:   bucket,
		pageSize: 2,
		objects:  make(map[string]fakeObject),
		uploads:  make(map[string]map[int32][]byte),
	}
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func (f *fakeS3) checkBucket(bucket *string) error {
	if aws.ToString(bucket) != f.bucket {
		return apiError("NoSuchBucket")
	}
	return nil
}

// store publishes data at key. Callers hold f.mu.
func (f *fakeS3) store(key string, data []byte) fakeObject {
	f.seq++
	obj := fakeObject{
		data:     data,
		etag:     fmt.Sprintf("%q", "etag-"+strconv.Itoa(f.seq)),
		modified: time.Now().UTC().Truncate(time.Second),
	}
	f.objects[key] = obj
	return obj
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeS3) HeadBucket(_ context.Context, params *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(params.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.data))),
		ETag:          aws.String(obj.etag),
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (f *fakeS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	if params.IfMatch != nil && *params.IfMatch != obj.etag {
		return nil, apiError("PreconditionFailed")
	}

	data := obj.data
	if params.Range != nil {
		var start, end int
		if _, err := fmt.Sscanf(*params.Range, "bytes=%d-%d", &start, &end); err != nil || end >= len(data) || start > end {
			return nil, apiError("InvalidRange")
		}
		data = data[start : end+1]
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(bytes.Clone(data))),
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(obj.etag),
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := aws.ToString(params.Key)
	existing, exists := f.objects[key]
	if aws.ToString(params.IfNoneMatch) == "*" && exists {
		return nil, apiError("PreconditionFailed")
	}
	if params.IfMatch != nil {
		if !exists {
			return nil, apiError("NoSuchKey")
		}
		if *params.IfMatch != existing.etag {
			return nil, apiError("PreconditionFailed")
		}
	}

	obj := f.store(key, data)
	return &s3.PutObjectOutput{ETag: aws.String(obj.etag)}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}
	source, ok := strings.CutPrefix(aws.ToString(params.CopySource), f.bucket+"/")
	if !ok {
		return nil, apiError("NoSuchBucket")
	}
	source, err := url.PathUnescape(source)
	if err != nil {
		return nil, apiError("InvalidArgument")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	src, ok := f.objects[source]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.store(aws.ToString(params.Key), src.data)
	return &s3.CopyObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}
	prefix := aws.ToString(params.Prefix)
	delimiter := aws.ToString(params.Delimiter)

	// entries interleaves objects and common prefixes in key order, the
	// way S3 paginates them.
	type entry struct {
		key      string
		isPrefix bool
	}
	var entries []entry
	seen := make(map[string]bool)
	for _, key := range f.keys() {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		if delimiter != "" {
			if i := strings.Index(rest, delimiter); i >= 0 {
				cp := prefix + rest[:i+len(delimiter)]
				if !seen[cp] {
					seen[cp] = true
					entries = append(entries, entry{key: cp, isPrefix: true})
				}
				continue
			}
		}
		entries = append(entries, entry{key: key})
	}

	offset := 0
	if token := aws.ToString(params.ContinuationToken); token != "" {
		offset, _ = strconv.Atoi(token)
	}
	limit := min(offset+f.pageSize, len(entries))

	f.mu.Lock()
	defer f.mu.Unlock()

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(limit < len(entries))}
	for _, e := range entries[offset:limit] {
		if e.isPrefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(e.key)})
			continue
		}
		obj, ok := f.objects[e.key]
		if !ok {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(e.key),
			Size:         aws.Int64(int64(len(obj.data))),
			ETag:         aws.String(obj.etag),
			LastModified: aws.Time(obj.modified),
		})
	}
	if limit < len(entries) {
		out.NextContinuationToken = aws.String(strconv.Itoa(limit))
	}
	return out, nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	if err := f.checkBucket(params.Bucket); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	id := "upload-" + strconv.Itoa(f.seq)
	f.uploads[id] = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(id)}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	parts, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}
	number := aws.ToInt32(params.PartNumber)
	parts[number] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("%q", "part-"+strconv.Itoa(int(number))))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.UploadId)
	parts, ok := f.uploads[id]
	if !ok {
		return nil, &types.NoSuchUpload{}
	}

	var payload bytes.Buffer
	completed := params.MultipartUpload.Parts
	for i, part := range completed {
		data, ok := parts[aws.ToInt32(part.PartNumber)]
		if !ok {
			return nil, apiError("InvalidPart")
		}
		if i < len(completed)-1 && len(data) < minPartSize {
			return nil, apiError("EntityTooSmall")
		}
		payload.Write(data)
	}

	delete(f.uploads, id)
	obj := f.store(aws.ToString(params.Key), payload.Bytes())
	return &s3.CompleteMultipartUploadOutput{ETag: aws.String(obj.etag)}, nil
}

func (f *fakeS3) AbortMultipartUpload(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.UploadId)
	if _, ok := f.uploads[id]; !ok {
		return nil, &types.NoSuchUpload{}
	}
	delete(f.uploads, id)
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) pendingUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}
