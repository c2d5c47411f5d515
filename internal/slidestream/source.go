package slidestream

import (
	"context"
	"io"
)

// Source yields raw text deltas in order. Next returns io.EOF once the
// stream has ended normally; any other error is an upstream failure.
// Deltas carry no boundary guarantees and may be empty.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// SliceSource replays a fixed list of deltas.
type SliceSource struct {
	deltas []string
	pos    int
}

// NewSliceSource returns a source yielding deltas in order.
func NewSliceSource(deltas ...string) *SliceSource {
	return &SliceSource{deltas: deltas}
}

// Next returns the next delta, or io.EOF once all have been returned.
func (s *SliceSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.pos >= len(s.deltas) {
		return "", io.EOF
	}
	d := s.deltas[s.pos]
	s.pos++
	return d, nil
}

// ReaderSource chops an io.Reader into deltas of at most chunkSize bytes.
// Chunk boundaries may split multi-byte characters; the Scanner copes.
type ReaderSource struct {
	r   io.Reader
	buf []byte
	err error
}

// NewReaderSource reads r in deltas of at most chunkSize bytes. A
// non-positive chunkSize means 64.
func NewReaderSource(r io.Reader, chunkSize int) *ReaderSource {
	if chunkSize <= 0 {
		chunkSize = 64
	}
	return &ReaderSource{r: r, buf: make([]byte, chunkSize)}
}

// Next returns the next chunk read from the underlying reader.
func (s *ReaderSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.err != nil {
		return "", s.err
	}
	n, err := s.r.Read(s.buf)
	if err != nil {
		s.err = err
	}
	if n > 0 {
		return string(s.buf[:n]), nil
	}
	if err == nil {
		return "", nil
	}
	return "", err
}

// Close closes the underlying reader when it is an io.Closer.
func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
