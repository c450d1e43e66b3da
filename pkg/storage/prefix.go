package storage

import (
	"context"
	"fmt"
	"iter"
)

// PrefixStore scopes an ObjectStore to a sub-path.
//
// Every location passed in is joined onto the prefix, and every location
// returned is made relative to it again. Used for backends whose factory
// returns a non-empty root (an S3 key prefix, for instance).
type PrefixStore struct {
	inner  ObjectStore
	prefix Path
}

// NewPrefixStore wraps inner so that all paths live below prefix.
func NewPrefixStore(inner ObjectStore, prefix Path) *PrefixStore {
	return &PrefixStore{inner: inner, prefix: prefix}
}

// Inner returns the wrapped store.
func (s *PrefixStore) Inner() ObjectStore {
	return s.inner
}

// Prefix returns the scoping prefix.
func (s *PrefixStore) Prefix() Path {
	return s.prefix
}

func (s *PrefixStore) full(p Path) Path {
	return s.prefix.Join(p)
}

func (s *PrefixStore) strip(meta ObjectMeta) ObjectMeta {
	if rel, ok := meta.Location.StripPrefix(s.prefix); ok {
		meta.Location = rel
	}
	return meta
}

func (s *PrefixStore) Put(ctx context.Context, location Path, payload []byte) (PutResult, error) {
	return s.inner.Put(ctx, s.full(location), payload)
}

func (s *PrefixStore) PutOpts(ctx context.Context, location Path, payload []byte, opts PutOptions) (PutResult, error) {
	return s.inner.PutOpts(ctx, s.full(location), payload, opts)
}

func (s *PrefixStore) PutMultipartOpts(ctx context.Context, location Path, opts PutMultipartOptions) (MultipartUpload, error) {
	return s.inner.PutMultipartOpts(ctx, s.full(location), opts)
}

func (s *PrefixStore) Get(ctx context.Context, location Path) (*GetResult, error) {
	return s.GetOpts(ctx, location, GetOptions{})
}

func (s *PrefixStore) GetOpts(ctx context.Context, location Path, opts GetOptions) (*GetResult, error) {
	res, err := s.inner.GetOpts(ctx, s.full(location), opts)
	if err != nil {
		return nil, err
	}
	res.Meta = s.strip(res.Meta)
	return res, nil
}

func (s *PrefixStore) GetRange(ctx context.Context, location Path, r GetRange) ([]byte, error) {
	return s.inner.GetRange(ctx, s.full(location), r)
}

func (s *PrefixStore) Head(ctx context.Context, location Path) (ObjectMeta, error) {
	meta, err := s.inner.Head(ctx, s.full(location))
	if err != nil {
		return ObjectMeta{}, err
	}
	return s.strip(meta), nil
}

func (s *PrefixStore) Delete(ctx context.Context, location Path) error {
	return s.inner.Delete(ctx, s.full(location))
}

func (s *PrefixStore) List(ctx context.Context, prefix Path) iter.Seq2[ObjectMeta, error] {
	inner := s.inner.List(ctx, s.full(prefix))
	return func(yield func(ObjectMeta, error) bool) {
		for meta, err := range inner {
			if err != nil {
				yield(ObjectMeta{}, err)
				return
			}
			if !yield(s.strip(meta), nil) {
				return
			}
		}
	}
}

func (s *PrefixStore) ListWithDelimiter(ctx context.Context, prefix Path) (*ListResult, error) {
	res, err := s.inner.ListWithDelimiter(ctx, s.full(prefix))
	if err != nil {
		return nil, err
	}
	out := &ListResult{
		CommonPrefixes: make([]Path, 0, len(res.CommonPrefixes)),
		Objects:        make([]ObjectMeta, 0, len(res.Objects)),
	}
	for _, p := range res.CommonPrefixes {
		if rel, ok := p.StripPrefix(s.prefix); ok {
			out.CommonPrefixes = append(out.CommonPrefixes, rel)
		}
	}
	for _, meta := range res.Objects {
		out.Objects = append(out.Objects, s.strip(meta))
	}
	return out, nil
}

func (s *PrefixStore) Copy(ctx context.Context, from, to Path) error {
	return s.inner.Copy(ctx, s.full(from), s.full(to))
}

func (s *PrefixStore) CopyIfNotExists(ctx context.Context, from, to Path) error {
	return s.inner.CopyIfNotExists(ctx, s.full(from), s.full(to))
}

func (s *PrefixStore) RenameIfNotExists(ctx context.Context, from, to Path) error {
	return s.inner.RenameIfNotExists(ctx, s.full(from), s.full(to))
}

func (s *PrefixStore) String() string {
	return fmt.Sprintf("PrefixStore(%s, %q)", s.inner, s.prefix)
}

// Close closes the wrapped store, if it holds resources.
func (s *PrefixStore) Close() error {
	return Close(s.inner)
}
