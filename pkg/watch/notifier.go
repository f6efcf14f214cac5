package watch

// Notifier is the kernel notification facility that watches are installed
// on, and that events are read from.
type Notifier interface {
	// AddWatch starts reporting the events in `mask` for `path`, and returns
	// the handle that identifies the watch in future records. Adding a path
	// that's already watched returns the existing handle.
	AddWatch(path string, mask uint32) (int, error)

	// RemoveWatch stops reporting events for the given handle.
	RemoveWatch(handle int) error

	// Read blocks until at least one record is available, and then fills
	// buf with as many whole records as fit.
	Read(buf []byte) (int, error)

	Close() error
}
