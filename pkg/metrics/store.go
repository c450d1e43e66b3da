package metrics

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/tablestore/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StoreMetrics records object store operations.
type StoreMetrics interface {
	// ObserveOperation records one completed operation.
	ObserveOperation(backend, operation string, duration time.Duration, err error)

	// RecordBytes records payload bytes moved by an operation.
	RecordBytes(backend, operation string, bytes int64)
}

type storeMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

var (
	sharedMetrics     *storeMetrics
	sharedMetricsOnce sync.Once
)

// NewStoreMetrics returns the Prometheus-backed StoreMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called). The
// collectors are registered once; every call returns the same instance.
func NewStoreMetrics() StoreMetrics {
	if !IsEnabled() {
		return nil
	}

	sharedMetricsOnce.Do(func() {
		reg := GetRegistry()
		sharedMetrics = &storeMetrics{
			operationsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "tablestore_store_operations_total",
					Help: "Total number of object store operations by backend, operation and status",
				},
				[]string{"backend", "operation", "status"},
			),
			operationDuration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "tablestore_store_operation_duration_seconds",
					Help: "Duration of object store operations in seconds",
					Buckets: []float64{
						0.001, // 1ms
						0.005, // 5ms
						0.01,  // 10ms
						0.05,  // 50ms
						0.1,   // 100ms
						0.5,   // 500ms
						1.0,   // 1s
						5.0,   // 5s
						30.0,  // 30s
					},
				},
				[]string{"backend", "operation"},
			),
			bytesTransferred: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "tablestore_store_bytes_total",
					Help: "Total payload bytes read or written by object store operations",
				},
				[]string{"backend", "operation"},
			),
			errorsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "tablestore_store_errors_total",
					Help: "Total number of object store errors by backend, operation and error code",
				},
				[]string{"backend", "operation", "code"},
			),
		}
	})
	return sharedMetrics
}

var codeLabelReplacer = strings.NewReplacer(" ", "_", "/", "")

// errorCode returns the label of err: the storage error code
// ("object_not_found", "io_error", ...) or "canceled".
func errorCode(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return codeLabelReplacer.Replace(storage.CodeOf(err).Error())
}

func (m *storeMetrics) ObserveOperation(backend, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.errorsTotal.WithLabelValues(backend, operation, errorCode(err)).Inc()
	}

	m.operationsTotal.WithLabelValues(backend, operation, status).Inc()
	m.operationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

func (m *storeMetrics) RecordBytes(backend, operation string, bytes int64) {
	m.bytesTransferred.WithLabelValues(backend, operation).Add(float64(bytes))
}

// ============================================================================
// InstrumentedStore
// ============================================================================

// InstrumentedStore records every operation of the wrapped store.
type InstrumentedStore struct {
	inner   storage.ObjectStore
	backend string
	metrics StoreMetrics
}

// Instrument wraps store so that its operations are recorded under the
// backend label. Returns store unchanged when m is nil.
func Instrument(store storage.ObjectStore, backend string, m StoreMetrics) storage.ObjectStore {
	if m == nil {
		return store
	}
	return &InstrumentedStore{inner: store, backend: backend, metrics: m}
}

// Inner returns the wrapped store.
func (s *InstrumentedStore) Inner() storage.ObjectStore {
	return s.inner
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	s.metrics.ObserveOperation(s.backend, operation, time.Since(start), err)
}

func (s *InstrumentedStore) Put(ctx context.Context, location storage.Path, payload []byte) (storage.PutResult, error) {
	return s.PutOpts(ctx, location, payload, storage.PutOptions{})
}

func (s *InstrumentedStore) PutOpts(ctx context.Context, location storage.Path, payload []byte, opts storage.PutOptions) (storage.PutResult, error) {
	start := time.Now()
	res, err := s.inner.PutOpts(ctx, location, payload, opts)
	s.observe("put", start, err)
	if err == nil {
		s.metrics.RecordBytes(s.backend, "put", int64(len(payload)))
	}
	return res, err
}

func (s *InstrumentedStore) PutMultipartOpts(ctx context.Context, location storage.Path, opts storage.PutMultipartOptions) (storage.MultipartUpload, error) {
	start := time.Now()
	upload, err := s.inner.PutMultipartOpts(ctx, location, opts)
	s.observe("put_multipart", start, err)
	if err != nil {
		return nil, err
	}
	return &instrumentedUpload{inner: upload, store: s}, nil
}

func (s *InstrumentedStore) Get(ctx context.Context, location storage.Path) (*storage.GetResult, error) {
	return s.GetOpts(ctx, location, storage.GetOptions{})
}

// GetOpts records the request itself; body bytes are counted as the
// caller reads them.
func (s *InstrumentedStore) GetOpts(ctx context.Context, location storage.Path, opts storage.GetOptions) (*storage.GetResult, error) {
	start := time.Now()
	res, err := s.inner.GetOpts(ctx, location, opts)
	s.observe("get", start, err)
	if err != nil {
		return nil, err
	}
	if res.Body != nil {
		res.Body = &countingBody{ReadCloser: res.Body, record: func(n int64) {
			s.metrics.RecordBytes(s.backend, "get", n)
		}}
	}
	return res, nil
}

func (s *InstrumentedStore) GetRange(ctx context.Context, location storage.Path, r storage.GetRange) ([]byte, error) {
	start := time.Now()
	data, err := s.inner.GetRange(ctx, location, r)
	s.observe("get_range", start, err)
	if err == nil {
		s.metrics.RecordBytes(s.backend, "get", int64(len(data)))
	}
	return data, err
}

func (s *InstrumentedStore) Head(ctx context.Context, location storage.Path) (storage.ObjectMeta, error) {
	start := time.Now()
	meta, err := s.inner.Head(ctx, location)
	s.observe("head", start, err)
	return meta, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, location storage.Path) error {
	start := time.Now()
	err := s.inner.Delete(ctx, location)
	s.observe("delete", start, err)
	return err
}

// List records one operation per iteration, covering the whole
// enumeration.
func (s *InstrumentedStore) List(ctx context.Context, prefix storage.Path) iter.Seq2[storage.ObjectMeta, error] {
	return func(yield func(storage.ObjectMeta, error) bool) {
		start := time.Now()
		var listErr error
		defer func() { s.observe("list", start, listErr) }()

		for meta, err := range s.inner.List(ctx, prefix) {
			if err != nil {
				listErr = err
			}
			if !yield(meta, err) || err != nil {
				return
			}
		}
	}
}

func (s *InstrumentedStore) ListWithDelimiter(ctx context.Context, prefix storage.Path) (*storage.ListResult, error) {
	start := time.Now()
	res, err := s.inner.ListWithDelimiter(ctx, prefix)
	s.observe("list_with_delimiter", start, err)
	return res, err
}

func (s *InstrumentedStore) Copy(ctx context.Context, from, to storage.Path) error {
	start := time.Now()
	err := s.inner.Copy(ctx, from, to)
	s.observe("copy", start, err)
	return err
}

func (s *InstrumentedStore) CopyIfNotExists(ctx context.Context, from, to storage.Path) error {
	start := time.Now()
	err := s.inner.CopyIfNotExists(ctx, from, to)
	s.observe("copy_if_not_exists", start, err)
	return err
}

func (s *InstrumentedStore) RenameIfNotExists(ctx context.Context, from, to storage.Path) error {
	start := time.Now()
	err := s.inner.RenameIfNotExists(ctx, from, to)
	s.observe("rename_if_not_exists", start, err)
	return err
}

func (s *InstrumentedStore) String() string {
	return fmt.Sprintf("InstrumentedStore(%s)", s.inner)
}

// Close closes the wrapped store, if it holds resources.
func (s *InstrumentedStore) Close() error {
	return storage.Close(s.inner)
}

type instrumentedUpload struct {
	inner storage.MultipartUpload
	store *InstrumentedStore
}

func (u *instrumentedUpload) PutPart(ctx context.Context, data []byte) error {
	start := time.Now()
	err := u.inner.PutPart(ctx, data)
	u.store.observe("put_part", start, err)
	if err == nil {
		u.store.metrics.RecordBytes(u.store.backend, "put", int64(len(data)))
	}
	return err
}

func (u *instrumentedUpload) Complete(ctx context.Context) (storage.PutResult, error) {
	start := time.Now()
	res, err := u.inner.Complete(ctx)
	u.store.observe("complete_multipart", start, err)
	return res, err
}

func (u *instrumentedUpload) Abort(ctx context.Context) error {
	start := time.Now()
	err := u.inner.Abort(ctx)
	u.store.observe("abort_multipart", start, err)
	return err
}
