package metrics

import "io"

// countingBody reports the bytes read through it once, on Close.
type countingBody struct {
	io.ReadCloser
	n      int64
	record func(int64)
	closed bool
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	return n, err
}

func (b *countingBody) Close() error {
	if !b.closed {
		b.closed = true
		b.record(b.n)
	}
	return b.ReadCloser.Close()
}
