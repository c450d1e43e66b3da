package s3

import (
	"bytes"
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/tablestore/internal/logger"
	"github.com/marmos91/tablestore/pkg/storage"
)

// multipartUpload buffers caller parts and flushes them as S3 parts of at
// least partSize bytes. The S3 upload is only created once the first part
// is flushed; uploads smaller than one part complete with a single
// PutObject.
type multipartUpload struct {
	store      *S3Store
	location   storage.Path
	attributes map[string]string

	mu             sync.Mutex
	uploadID       string
	buf            bytes.Buffer
	completedParts []types.CompletedPart
	done           bool
}

func (u *multipartUpload) key() *string {
	return aws.String(objectKey(u.location))
}

func (u *multipartUpload) PutPart(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return storage.Errorf(storage.ErrIO, StoreName, u.location.String(), "upload already finished")
	}

	u.buf.Write(data)
	for int64(u.buf.Len()) >= u.store.partSize {
		if err := u.flush(ctx, u.buf.Next(int(u.store.partSize))); err != nil {
			return err
		}
	}
	return nil
}

// flush uploads part as the next S3 part, creating the upload on first use.
// Callers hold u.mu.
func (u *multipartUpload) flush(ctx context.Context, part []byte) error {
	if u.uploadID == "" {
		input := &s3.CreateMultipartUploadInput{
			Bucket: aws.String(u.store.bucket),
			Key:    u.key(),
		}
		if ct, ok := u.attributes["content-type"]; ok {
			input.ContentType = aws.String(ct)
		}

		out, err := u.store.client.CreateMultipartUpload(ctx, input)
		if err != nil {
			return mapError(err, u.location, false)
		}
		u.uploadID = aws.ToString(out.UploadId)
		logger.Debug("S3 multipart upload started: key=%s, upload_id=%s", objectKey(u.location), u.uploadID)
	}

	partNumber := int32(len(u.completedParts) + 1)
	out, err := u.store.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(u.store.bucket),
		Key:           u.key(),
		UploadId:      aws.String(u.uploadID),
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(part),
		ContentLength: aws.Int64(int64(len(part))),
	})
	if err != nil {
		return mapError(err, u.location, false)
	}

	u.completedParts = append(u.completedParts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	return nil
}

func (u *multipartUpload) Complete(ctx context.Context) (storage.PutResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return storage.PutResult{}, storage.Errorf(storage.ErrIO, StoreName, u.location.String(), "upload already finished")
	}
	u.done = true

	if u.uploadID == "" {
		payload := bytes.Clone(u.buf.Bytes())
		u.buf.Reset()
		return u.store.Put(ctx, u.location, payload)
	}

	if u.buf.Len() > 0 {
		if err := u.flush(ctx, u.buf.Bytes()); err != nil {
			_ = u.abort(ctx)
			return storage.PutResult{}, err
		}
		u.buf.Reset()
	}

	out, err := u.store.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(u.store.bucket),
		Key:      u.key(),
		UploadId: aws.String(u.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: u.completedParts,
		},
	})
	if err != nil {
		_ = u.abort(ctx)
		return storage.PutResult{}, mapError(err, u.location, false)
	}
	return storage.PutResult{ETag: aws.ToString(out.ETag), Version: aws.ToString(out.VersionId)}, nil
}

func (u *multipartUpload) Abort(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.done = true
	u.buf.Reset()
	if u.uploadID == "" {
		return nil
	}
	return u.abort(ctx)
}

// abort discards the S3 upload. Callers hold u.mu.
func (u *multipartUpload) abort(ctx context.Context) error {
	_, err := u.store.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(u.store.bucket),
		Key:      u.key(),
		UploadId: aws.String(u.uploadID),
	})
	if err != nil {
		logger.Warn("S3 multipart abort failed: key=%s, upload_id=%s: %v", objectKey(u.location), u.uploadID, err)
		return mapError(err, u.location, false)
	}
	u.uploadID = ""
	u.completedParts = nil
	return nil
}
