//go:build linux

package watch

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/sidkik/lds/pkg/errors"
)

type inotify struct {
	fd int

	// file wraps fd so that reads park in the runtime poller, and are
	// interrupted by Close.
	file *os.File
}

// NewNotifier creates a new inotify instance.
func NewNotifier() (Notifier, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, errors.WithContext(err, "inotify init")
	}
	return &inotify{fd: fd, file: os.NewFile(uintptr(fd), "inotify")}, nil
}

func (n *inotify) AddWatch(path string, mask uint32) (int, error) {
	handle, err := unix.InotifyAddWatch(n.fd, path, mask)
	if err == unix.ENOSPC {
		// The per-user limit is shared with every other inotify user on
		// the machine, so it can run out before our own count does.
		return 0, errors.CapacityExceeded{}
	}
	if err != nil {
		return 0, err
	}
	return handle, nil
}

func (n *inotify) RemoveWatch(handle int) error {
	_, err := unix.InotifyRmWatch(n.fd, uint32(handle))
	return err
}

func (n *inotify) Read(buf []byte) (int, error) {
	return n.file.Read(buf)
}

func (n *inotify) Close() error {
	return n.file.Close()
}
