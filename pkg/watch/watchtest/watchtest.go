// Package watchtest provides a fake kernel notifier and a record encoder for
// testing code that consumes watch events.
package watchtest

import (
	"encoding/binary"
	"errors"
	"sort"
	"sync"
)

// ErrClosed is returned by Read once the Notifier is closed.
var ErrClosed = errors.New("notifier closed")

// Record is a raw event record, as written by the kernel.
type Record struct {
	Handle int
	Mask   uint32
	Cookie uint32
	Name   string
}

// Encode serializes records the way the kernel does, padding each name with
// NULs to a multiple of 16 bytes.
func Encode(records ...Record) []byte {
	var buf []byte
	for _, rec := range records {
		nameLen := 0
		if rec.Name != "" {
			nameLen = (len(rec.Name)/16 + 1) * 16
		}

		header := make([]byte, 16)
		binary.NativeEndian.PutUint32(header[0:4], uint32(int32(rec.Handle)))
		binary.NativeEndian.PutUint32(header[4:8], rec.Mask)
		binary.NativeEndian.PutUint32(header[8:12], rec.Cookie)
		binary.NativeEndian.PutUint32(header[12:16], uint32(nameLen))
		buf = append(buf, header...)

		name := make([]byte, nameLen)
		copy(name, rec.Name)
		buf = append(buf, name...)
	}
	return buf
}

// Notifier is an in-memory notifier. Handles are assigned sequentially
// starting at 1, and buffers passed to Send are returned by Read.
type Notifier struct {
	// Fail maps paths to the error AddWatch should return for them.
	Fail map[string]error

	lock    sync.Mutex
	next    int
	watches map[int]string
	masks   map[int]uint32

	events chan []byte
	closed chan struct{}
	once   sync.Once
}

// NewNotifier returns an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		Fail:    map[string]error{},
		next:    1,
		watches: map[int]string{},
		masks:   map[int]uint32{},
		events:  make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

// AddWatch implements watch.Notifier.
func (n *Notifier) AddWatch(path string, mask uint32) (int, error) {
	n.lock.Lock()
	defer n.lock.Unlock()

	if err, ok := n.Fail[path]; ok {
		return 0, err
	}

	for handle, watched := range n.watches {
		if watched == path {
			n.masks[handle] = mask
			return handle, nil
		}
	}

	handle := n.next
	n.next++
	n.watches[handle] = path
	n.masks[handle] = mask
	return handle, nil
}

// RemoveWatch implements watch.Notifier.
func (n *Notifier) RemoveWatch(handle int) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if _, ok := n.watches[handle]; !ok {
		return errors.New("invalid argument")
	}
	delete(n.watches, handle)
	delete(n.masks, handle)
	return nil
}

// Read implements watch.Notifier. It blocks until a buffer is sent, or the
// Notifier is closed.
func (n *Notifier) Read(buf []byte) (int, error) {
	select {
	case events := <-n.events:
		return copy(buf, events), nil
	case <-n.closed:
		return 0, ErrClosed
	}
}

// Close implements watch.Notifier.
func (n *Notifier) Close() error {
	n.once.Do(func() { close(n.closed) })
	return nil
}

// Send queues a buffer to be returned by Read.
func (n *Notifier) Send(buf []byte) {
	n.events <- buf
}

// Handle returns the handle of the watch on `path`.
func (n *Notifier) Handle(path string) (int, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()

	for handle, watched := range n.watches {
		if watched == path {
			return handle, true
		}
	}
	return 0, false
}

// Mask returns the mask the watch on `path` was installed with.
func (n *Notifier) Mask(path string) uint32 {
	handle, ok := n.Handle(path)
	if !ok {
		return 0
	}

	n.lock.Lock()
	defer n.lock.Unlock()
	return n.masks[handle]
}

// Watched returns the sorted paths with active watches.
func (n *Notifier) Watched() []string {
	n.lock.Lock()
	defer n.lock.Unlock()

	var paths []string
	for _, path := range n.watches {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
