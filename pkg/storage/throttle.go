package storage

import (
	"context"
	"fmt"
	"iter"

	"github.com/marmos91/tablestore/internal/ratelimiter"
)

// ThrottleOptions are the backend-independent request throttling options.
type ThrottleOptions struct {
	// MaxRequestsPerSecond caps the sustained request rate (0 = unlimited)
	MaxRequestsPerSecond float64 `mapstructure:"max_requests_per_second"`

	// MaxRequestBurst is the number of requests that may start at once
	// (default: one second worth of requests)
	MaxRequestBurst int `mapstructure:"max_request_burst"`
}

// ParseThrottleOptions decodes the throttling options out of opts.
func ParseThrottleOptions(opts StorageOptions) (ThrottleOptions, error) {
	var o ThrottleOptions
	if err := opts.Decode(&o); err != nil {
		return ThrottleOptions{}, err
	}
	if o.MaxRequestsPerSecond < 0 || o.MaxRequestBurst < 0 {
		return ThrottleOptions{}, fmt.Errorf("throttle limits must not be negative")
	}
	return o, nil
}

// ThrottledStore limits the rate of requests sent to the wrapped store.
//
// Every operation takes one token before it reaches the backend. A List
// takes one token per iteration, and a multipart upload one token per part.
type ThrottledStore struct {
	inner   ObjectStore
	limiter *ratelimiter.RateLimiter
}

// NewThrottledStore wraps inner with limiter.
func NewThrottledStore(inner ObjectStore, limiter *ratelimiter.RateLimiter) *ThrottledStore {
	return &ThrottledStore{inner: inner, limiter: limiter}
}

// Inner returns the wrapped store.
func (s *ThrottledStore) Inner() ObjectStore {
	return s.inner
}

func (s *ThrottledStore) wait(ctx context.Context) error {
	if s.limiter.Allow() {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *ThrottledStore) Put(ctx context.Context, location Path, payload []byte) (PutResult, error) {
	return s.PutOpts(ctx, location, payload, PutOptions{})
}

func (s *ThrottledStore) PutOpts(ctx context.Context, location Path, payload []byte, opts PutOptions) (PutResult, error) {
	if err := s.wait(ctx); err != nil {
		return PutResult{}, err
	}
	return s.inner.PutOpts(ctx, location, payload, opts)
}

func (s *ThrottledStore) PutMultipartOpts(ctx context.Context, location Path, opts PutMultipartOptions) (MultipartUpload, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	upload, err := s.inner.PutMultipartOpts(ctx, location, opts)
	if err != nil {
		return nil, err
	}
	return &throttledUpload{inner: upload, store: s}, nil
}

func (s *ThrottledStore) Get(ctx context.Context, location Path) (*GetResult, error) {
	return s.GetOpts(ctx, location, GetOptions{})
}

func (s *ThrottledStore) GetOpts(ctx context.Context, location Path, opts GetOptions) (*GetResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.GetOpts(ctx, location, opts)
}

func (s *ThrottledStore) GetRange(ctx context.Context, location Path, r GetRange) ([]byte, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.GetRange(ctx, location, r)
}

func (s *ThrottledStore) Head(ctx context.Context, location Path) (ObjectMeta, error) {
	if err := s.wait(ctx); err != nil {
		return ObjectMeta{}, err
	}
	return s.inner.Head(ctx, location)
}

func (s *ThrottledStore) Delete(ctx context.Context, location Path) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.inner.Delete(ctx, location)
}

func (s *ThrottledStore) List(ctx context.Context, prefix Path) iter.Seq2[ObjectMeta, error] {
	return func(yield func(ObjectMeta, error) bool) {
		if err := s.wait(ctx); err != nil {
			yield(ObjectMeta{}, err)
			return
		}
		for meta, err := range s.inner.List(ctx, prefix) {
			if !yield(meta, err) || err != nil {
				return
			}
		}
	}
}

func (s *ThrottledStore) ListWithDelimiter(ctx context.Context, prefix Path) (*ListResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.inner.ListWithDelimiter(ctx, prefix)
}

func (s *ThrottledStore) Copy(ctx context.Context, from, to Path) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.inner.Copy(ctx, from, to)
}

func (s *ThrottledStore) CopyIfNotExists(ctx context.Context, from, to Path) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.inner.CopyIfNotExists(ctx, from, to)
}

func (s *ThrottledStore) RenameIfNotExists(ctx context.Context, from, to Path) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	return s.inner.RenameIfNotExists(ctx, from, to)
}

func (s *ThrottledStore) String() string {
	return fmt.Sprintf("ThrottledStore(%s, %g/s)", s.inner, s.limiter.Limit())
}

// Close closes the wrapped store, if it holds resources.
func (s *ThrottledStore) Close() error {
	return Close(s.inner)
}

type throttledUpload struct {
	inner MultipartUpload
	store *ThrottledStore
}

func (u *throttledUpload) PutPart(ctx context.Context, data []byte) error {
	if err := u.store.wait(ctx); err != nil {
		return err
	}
	return u.inner.PutPart(ctx, data)
}

func (u *throttledUpload) Complete(ctx context.Context) (PutResult, error) {
	if err := u.store.wait(ctx); err != nil {
		return PutResult{}, err
	}
	return u.inner.Complete(ctx)
}

// Abort is never throttled so that cleanup cannot be starved.
func (u *throttledUpload) Abort(ctx context.Context) error {
	return u.inner.Abort(ctx)
}
