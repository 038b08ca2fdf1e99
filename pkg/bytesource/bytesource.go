// Package bytesource provides the sized, random-access byte source
// abstraction every archive decoder reads through: a whole-buffer view, an
// io.ReaderAt adapter, and a progressive-fill stream adapter whose
// concurrent waiters are served off a sync.Cond-broadcast watermark.
package bytesource

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bgrewell/archivefs/pkg/vfs"
)

// Source is a sized, random-access byte range. Get may block (stream
// sources) until offset+len bytes have arrived; GetContext returns
// ctx.Err() if cancelled first.
type Source interface {
	Size() int64
	Get(offset, length int64) ([]byte, error)
	GetContext(ctx context.Context, offset, length int64) ([]byte, error)
}

// TryGetter is implemented by sources that can report whether a range is
// already available without blocking for it. A caller's synchronous read
// path type-asserts for this to honor the try-again semantics of a
// progressive stream instead of suspending; sources that can never suspend
// (FromBytes, FromReaderAt) implement it trivially by always succeeding.
type TryGetter interface {
	TryGet(offset, length int64) ([]byte, error)
}

func checkRange(size, offset, length int64) error {
	if offset < 0 || length < 0 || offset+length > size {
		return fmt.Errorf("bytesource: range [%d,%d) out of bounds for size %d: %w", offset, offset+length, size, vfs.ErrInvalidArgument)
	}
	return nil
}

// bytesSource is the whole-buffer adapter: Get is a plain subrange and
// never blocks.
type bytesSource struct {
	data []byte
}

// FromBytes wraps an in-memory buffer as a Source. The buffer must not be
// mutated afterward; the source hands out subslices of it directly.
func FromBytes(data []byte) Source {
	return &bytesSource{data: data}
}

func (s *bytesSource) Size() int64 { return int64(len(s.data)) }

func (s *bytesSource) Get(offset, length int64) ([]byte, error) {
	if err := checkRange(s.Size(), offset, length); err != nil {
		return nil, err
	}
	return s.data[offset : offset+length], nil
}

func (s *bytesSource) GetContext(ctx context.Context, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Get(offset, length)
}

// TryGet never has anything to wait for: the whole buffer is always present.
func (s *bytesSource) TryGet(offset, length int64) ([]byte, error) {
	return s.Get(offset, length)
}

// readerAtSource adapts any io.ReaderAt (an *os.File, a range-request HTTP
// client, etc.) to the Source contract.
type readerAtSource struct {
	r    io.ReaderAt
	size int64
}

// FromReaderAt wraps r, which must support reads anywhere in [0,size).
func FromReaderAt(r io.ReaderAt, size int64) Source {
	return &readerAtSource{r: r, size: size}
}

func (s *readerAtSource) Size() int64 { return s.size }

func (s *readerAtSource) Get(offset, length int64) ([]byte, error) {
	if err := checkRange(s.size, offset, length); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(io.NewSectionReader(s.r, offset, length), buf); err != nil {
		return nil, fmt.Errorf("bytesource: read [%d,%d): %w: %v", offset, offset+length, vfs.ErrIO, err)
	}
	return buf, nil
}

func (s *readerAtSource) GetContext(ctx context.Context, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Get(offset, length)
}

// TryGet never has anything to wait for: the backing ReaderAt is assumed
// to cover [0,size) already (a file, a fully-downloaded blob).
func (s *readerAtSource) TryGet(offset, length int64) ([]byte, error) {
	return s.Get(offset, length)
}

// Stream is a progressive-fill Source: bytes are appended by Write as they
// arrive from a producer, and Get suspends until the requested range is
// available. Concurrent waiters are served via a sync.Cond broadcast on
// every Write rather than per-waiter channels, so they can resolve in any
// order as the watermark advances.
type Stream struct {
	mu        sync.Mutex
	cond      *sync.Cond
	buf       []byte
	size      int64
	closed    bool
	closeErr  error
}

// NewStream creates a Stream of the given final size. Write must deliver
// exactly size bytes, in order, before Close.
func NewStream(size int64) *Stream {
	s := &Stream{size: size, buf: make([]byte, 0, size)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Write appends p to the stream's watermark and wakes any waiters whose
// range may now be satisfiable.
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("bytesource: write after close")
	}
	s.buf = append(s.buf, p...)
	s.cond.Broadcast()
	return len(p), nil
}

// Close marks the stream finished. If err is non-nil, pending and future
// Get calls that would otherwise block past the short watermark fail with
// it instead.
func (s *Stream) Close(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.closeErr = err
	s.cond.Broadcast()
}

func (s *Stream) Size() int64 { return s.size }

// Get blocks until offset+length bytes have arrived, then returns a copy
// of that range. Use GetContext for a cancellable wait.
func (s *Stream) Get(offset, length int64) ([]byte, error) {
	return s.GetContext(context.Background(), offset, length)
}

// GetContext blocks until offset+length bytes have arrived or ctx is
// cancelled. Per §4.8's streaming-source semantics, callers who want
// ErrTryAgain instead of blocking use TryGet; Get and GetContext always
// wait.
func (s *Stream) GetContext(ctx context.Context, offset, length int64) ([]byte, error) {
	if err := checkRange(s.size, offset, length); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-done:
			}
		}()
		defer close(done)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for int64(len(s.buf)) < offset+length {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.closed {
			if s.closeErr != nil {
				return nil, s.closeErr
			}
			return nil, fmt.Errorf("bytesource: stream closed short of requested range: %w", vfs.ErrIO)
		}
		s.cond.Wait()
	}
	out := make([]byte, length)
	copy(out, s.buf[offset:offset+length])
	return out, nil
}

// TryGet returns the requested range immediately if already available, or
// vfs.ErrTryAgain without blocking. zipfs.FileSystem.TryRead type-asserts
// for TryGetter and calls this to implement the synchronous read path over
// a stream-backed source, per the try-again semantics a progressive
// stream mount must expose alongside its blocking, context-cancellable
// Read.
func (s *Stream) TryGet(offset, length int64) ([]byte, error) {
	if err := checkRange(s.size, offset, length); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if int64(len(s.buf)) < offset+length {
		return nil, vfs.ErrTryAgain
	}
	out := make([]byte, length)
	copy(out, s.buf[offset:offset+length])
	return out, nil
}

// FromStream pumps r (which must yield exactly size bytes) into a new
// Stream on its own goroutine and returns the Stream as a Source. Read
// errors from r close the stream with that error.
func FromStream(r io.Reader, size int64) *Stream {
	s := NewStream(size)
	go func() {
		buf := make([]byte, 32*1024)
		var total int64
		for total < size {
			n, err := r.Read(buf)
			if n > 0 {
				if _, werr := s.Write(buf[:n]); werr != nil {
					s.Close(werr)
					return
				}
				total += int64(n)
			}
			if err != nil {
				if err == io.EOF && total >= size {
					break
				}
				s.Close(fmt.Errorf("bytesource: stream read: %w", err))
				return
			}
		}
		s.Close(nil)
	}()
	return s
}
