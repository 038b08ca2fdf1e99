// Package decompress holds the ZIP compression-method registry: a
// method-id to decoder-constructor map, seeded with Store (0) and Deflate
// (8), extensible at runtime by callers wiring in their own methods.
package decompress

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/bgrewell/archivefs/pkg/vfs"
)

// Method identifiers as they appear in a ZIP central directory / local
// file header "compression method" field.
const (
	MethodStore   uint16 = 0
	MethodDeflate uint16 = 8
)

// NewReader wraps r (the raw, still-compressed entry body) in a decoder
// for the named method.
type NewReader func(r io.Reader) (io.ReadCloser, error)

var (
	mu       sync.RWMutex
	registry = map[uint16]NewReader{
		MethodStore:   newStoreReader,
		MethodDeflate: newDeflateReader,
	}
)

// Register adds or replaces the decoder for a compression method. Callers
// typically use this to add legacy methods (Shrink, Implode, BZIP2) the
// registry does not seed by default.
func Register(method uint16, fn NewReader) {
	mu.Lock()
	defer mu.Unlock()
	registry[method] = fn
}

// Lookup returns the decoder constructor registered for method, or
// ErrInvalidArgument if none is registered — the registry fails closed
// rather than guessing at an unsupported compression method.
func Lookup(method uint16) (NewReader, error) {
	mu.RLock()
	defer mu.RUnlock()
	fn, ok := registry[method]
	if !ok {
		return nil, fmt.Errorf("decompress: unsupported compression method %d: %w", method, vfs.ErrInvalidArgument)
	}
	return fn, nil
}

func newStoreReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

func newDeflateReader(r io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(r), nil
}
