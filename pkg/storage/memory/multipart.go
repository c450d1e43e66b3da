package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/marmos91/tablestore/pkg/storage"
)

// multipartUpload buffers parts until Complete publishes them atomically.
type multipartUpload struct {
	store    *MemoryStore
	location storage.Path

	mu    sync.Mutex
	parts [][]byte
	done  bool
}

func (s *MemoryStore) PutMultipartOpts(ctx context.Context, location storage.Path, _ storage.PutMultipartOptions) (storage.MultipartUpload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &multipartUpload{store: s, location: location}, nil
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
	u.parts = append(u.parts, bytes.Clone(data))
	return nil
}

func (u *multipartUpload) Complete(ctx context.Context) (storage.PutResult, error) {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return storage.PutResult{}, storage.Errorf(storage.ErrIO, StoreName, u.location.String(), "upload already finished")
	}
	u.done = true
	payload := bytes.Join(u.parts, nil)
	u.parts = nil
	u.mu.Unlock()

	return u.store.Put(ctx, u.location, payload)
}

func (u *multipartUpload) Abort(_ context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.done = true
	u.parts = nil
	return nil
}
