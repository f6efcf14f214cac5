package watch

import (
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/sidkik/lds/pkg/errors"
)

// TrackedPath is a path that has an active watch.
type TrackedPath struct {
	Handle int
	Path   string
	IsDir  bool

	// SourceCursor and DestinationCursor are the sizes of the file in the
	// source and destination as of the last successful replication. They're
	// advisory: the replication tool is the source of truth for what's
	// actually been copied.
	SourceCursor      int64
	DestinationCursor int64
}

// Table maps watch handles to the paths they were installed on.
type Table struct {
	notifier Notifier
	capacity int

	lock    sync.Mutex
	entries map[int]*TrackedPath
	paths   map[string]int
}

// NewTable returns an empty Table that installs at most `capacity` watches
// on `notifier`.
func NewTable(notifier Notifier, capacity int) *Table {
	return &Table{
		notifier: notifier,
		capacity: capacity,
		entries:  map[int]*TrackedPath{},
		paths:    map[string]int{},
	}
}

// Install adds a watch for `path`. It fails with errors.CapacityExceeded when
// the table is full, in which case the table isn't modified.
func (t *Table) Install(path string, isDir bool) (int, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.entries) >= t.capacity {
		return 0, errors.CapacityExceeded{Capacity: t.capacity}
	}

	mask := FileMask
	if isDir {
		mask = DirectoryMask
	}

	handle, err := t.notifier.AddWatch(path, mask)
	if err != nil {
		if capErr, ok := errors.RootCause(err).(errors.CapacityExceeded); ok {
			capErr.Capacity = t.capacity
			return 0, capErr
		}
		return 0, errors.WithContext(err, "add watch")
	}

	// The kernel returns the existing handle when the same inode is already
	// watched, e.g. when a path is re-added or is a hard link to a file we
	// already track.
	if existing, ok := t.entries[handle]; ok {
		delete(t.paths, existing.Path)
	}
	if oldHandle, ok := t.paths[path]; ok && oldHandle != handle {
		delete(t.entries, oldHandle)
	}

	t.entries[handle] = &TrackedPath{Handle: handle, Path: path, IsDir: isDir}
	t.paths[path] = handle
	log.WithFields(log.Fields{"path": path, "handle": handle}).Debug("Now watching")
	return handle, nil
}

// Remove removes the watch for the given handle. Removing a handle that isn't
// tracked is a no-op.
func (t *Table) Remove(handle int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.removeLocked(handle)
}

func (t *Table) removeLocked(handle int) {
	entry, ok := t.entries[handle]
	if !ok {
		return
	}
	t.forgetLocked(entry)

	// The kernel may have already dropped the watch (e.g. the path was
	// deleted), in which case removing it fails with EINVAL.
	if err := t.notifier.RemoveWatch(handle); err != nil {
		log.WithError(err).WithField("path", entry.Path).Debug("Failed to remove watch")
	}
	log.WithFields(log.Fields{"path": entry.Path, "handle": handle}).Debug("Stopped watching")
}

// Forget drops the entry for a handle that the kernel has already removed.
func (t *Table) Forget(handle int) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if entry, ok := t.entries[handle]; ok {
		t.forgetLocked(entry)
	}
}

func (t *Table) forgetLocked(entry *TrackedPath) {
	delete(t.entries, entry.Handle)
	if t.paths[entry.Path] == entry.Handle {
		delete(t.paths, entry.Path)
	}
}

// Lookup returns the tracked path for the given handle.
func (t *Table) Lookup(handle int) (TrackedPath, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	entry, ok := t.entries[handle]
	if !ok {
		return TrackedPath{}, false
	}
	return *entry, true
}

// HandleOf returns the handle of the watch installed on exactly `path`.
func (t *Table) HandleOf(path string) (int, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	handle, ok := t.paths[path]
	return handle, ok
}

// RemoveTree removes the watches for `path` and everything below it, and
// returns how many were removed.
func (t *Table) RemoveTree(path string) int {
	t.lock.Lock()
	defer t.lock.Unlock()

	var toRemove []int
	for p, handle := range t.paths {
		if isWithin(p, path) {
			toRemove = append(toRemove, handle)
		}
	}
	for _, handle := range toRemove {
		t.removeLocked(handle)
	}
	return len(toRemove)
}

// Move updates the paths of `oldPath` and everything below it after they were
// renamed to `newPath`. The kernel keeps the same watches across a rename.
func (t *Table) Move(oldPath, newPath string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	moved := map[string]int{}
	for p, handle := range t.paths {
		if !isWithin(p, oldPath) {
			continue
		}
		delete(t.paths, p)
		moved[newPath+strings.TrimPrefix(p, oldPath)] = handle
	}

	for p, handle := range moved {
		// Something already watched at the destination was replaced by the
		// rename.
		if replaced, ok := t.paths[p]; ok && replaced != handle {
			t.removeLocked(replaced)
		}
		t.paths[p] = handle
		t.entries[handle].Path = p
	}
}

// SetCursors records the sizes of a file as of its last replication.
func (t *Table) SetCursors(handle int, source, destination int64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if entry, ok := t.entries[handle]; ok {
		entry.SourceCursor = source
		entry.DestinationCursor = destination
	}
}

// Len returns the number of active watches.
func (t *Table) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return len(t.entries)
}

// Capacity returns the maximum number of watches.
func (t *Table) Capacity() int {
	return t.capacity
}

// isWithin returns whether `path` is `dir` or a descendant of it.
func isWithin(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+
		string(filepath.Separator))
}
