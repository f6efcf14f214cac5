package watch

import (
	"github.com/sidkik/lds/pkg/errors"
)

// bufferSize fits 1024 records with short names, and is always large enough
// for a record with the longest possible name.
const bufferSize = 1024 * (headerSize + 16)

// Stream reads raw record buffers from a Notifier.
type Stream struct {
	notifier Notifier
	buf      []byte
}

// NewStream creates a Stream over the given Notifier.
func NewStream(notifier Notifier) *Stream {
	return &Stream{notifier: notifier, buf: make([]byte, bufferSize)}
}

// Read blocks until the kernel has events, and returns the buffer it read.
// The returned slice is only valid until the next call to Read.
func (s *Stream) Read() ([]byte, error) {
	n, err := s.notifier.Read(s.buf)
	if err != nil {
		return nil, errors.WithContext(err, "read notifier")
	}
	if n < 0 || n > len(s.buf) {
		return nil, errors.Errorf("notifier returned invalid length %d", n)
	}
	return s.buf[:n], nil
}
