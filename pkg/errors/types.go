package errors

import (
	"fmt"
)

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// NotDirectory represents when a path that must be a directory is something
// else.
type NotDirectory struct {
	Path string
}

func (err NotDirectory) Error() string {
	return fmt.Sprintf("%q is not a directory", err.Path)
}

// CapacityExceeded is returned when a watch can't be installed because the
// kernel watch limit has been reached. Changes under the untracked path would
// be silently dropped, so callers must treat it as fatal.
type CapacityExceeded struct {
	Capacity int
}

func (err CapacityExceeded) Error() string {
	if err.Capacity == 0 {
		return "out of inotify watches"
	}
	return fmt.Sprintf("out of inotify watches (limit %d)", err.Capacity)
}

// FriendlyMessage implements the FriendlyError interface.
func (err CapacityExceeded) FriendlyMessage() string {
	return "The source directory has more entries than inotify can watch.\n" +
		"Increase fs.inotify.max_user_watches (e.g. " +
		"`sysctl fs.inotify.max_user_watches=524288`) and restart lds."
}

// IsCapacityExceeded returns whether the root cause of err is a
// CapacityExceeded error.
func IsCapacityExceeded(err error) bool {
	_, ok := RootCause(err).(CapacityExceeded)
	return ok
}
