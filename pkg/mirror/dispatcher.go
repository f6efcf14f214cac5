package mirror

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/lds/pkg/errors"
	"github.com/sidkik/lds/pkg/replicate"
	"github.com/sidkik/lds/pkg/watch"
)

// Dispatcher applies decoded changes to the watch table and the destination.
type Dispatcher struct {
	root       string
	fs         afero.Fs
	table      *watch.Table
	walker     *watch.Walker
	replicator replicate.Replicator
	log        logrus.FieldLogger

	// Ignore reports whether a path, relative to root, is excluded.
	Ignore func(relPath string) bool
}

// NewDispatcher creates a Dispatcher for the tree at `root`. Calls to
// `replicator` aren't serialized by the Dispatcher, so callers that share it
// should pass a gated Replicator.
func NewDispatcher(root string, fs afero.Fs, table *watch.Table, walker *watch.Walker,
	replicator replicate.Replicator, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{
		root:       root,
		fs:         fs,
		table:      table,
		walker:     walker,
		replicator: replicator,
		log:        log,
	}
}

// Dispatch handles a single change. Failures that only affect the changed
// path are logged, and the only errors returned are fatal ones.
func (d *Dispatcher) Dispatch(change watch.Change) error {
	switch change.Kind {
	case watch.Overflow:
		return d.resync()
	case watch.WatchRemoved:
		d.forget(change)
		return nil
	case watch.Renamed:
		return d.rename(change)
	}

	path, ok := d.resolve(change.Handle, change.Name)
	if !ok {
		d.log.WithFields(logrus.Fields{
			"handle": change.Handle,
			"kind":   change.Kind,
		}).Debug("Dropping change for untracked watch")
		return nil
	}

	rel := d.relative(path)
	if d.ignored(rel) {
		d.log.WithField("path", path).Debug("Dropping change for excluded path")
		return nil
	}

	logger := d.log.WithFields(logrus.Fields{
		"path": path,
		"kind": change.Kind,
	})
	logger.Debug("Dispatching change")

	switch change.Kind {
	case watch.Created, watch.MovedIn:
		return d.add(path, change.IsDir)
	case watch.Deleted, watch.MovedAway:
		d.remove(path, change.IsDir)
	case watch.ModifiedContent:
		d.modify(path)
	case watch.ModifiedMetadata:
		d.checkMetadata(path)
	default:
		logger.Warn("Ignoring change of unknown kind")
	}
	return nil
}

// add starts tracking a path that appeared in the source, and copies it to
// the destination.
func (d *Dispatcher) add(path string, isDir bool) error {
	fi, err := watch.Lstat(d.fs, path)
	if err != nil {
		// It's already gone again. Its removal will be reported separately.
		d.log.WithError(err).WithField("path", path).Debug("Failed to stat new path")
		return nil
	}

	switch watch.Classify(fi.Mode()) {
	case watch.Directory:
		return d.addDirectory(path)
	case watch.RegularFile:
		return d.addFile(path, fi.Size())
	case watch.Special:
		d.log.WithField("path", path).Debug("Skipping special file")
	default:
		d.log.WithFields(logrus.Fields{
			"path":        path,
			"mode":        fi.Mode().String(),
			"reportedDir": isDir,
		}).Warn("Skipping unknown file type")
	}
	return nil
}

func (d *Dispatcher) addDirectory(path string) error {
	if _, err := d.table.Install(path, true); err != nil {
		if errors.IsCapacityExceeded(err) {
			return err
		}
		d.log.WithError(err).WithField("path", path).Warn("Failed to watch directory")
		return nil
	}

	if err := d.walker.Walk(path); err != nil {
		if errors.IsCapacityExceeded(err) {
			return err
		}
		d.table.RemoveTree(path)
		d.log.WithError(err).WithField("path", path).Warn("Failed to walk directory")
		return nil
	}

	d.replicate(path, func(rel string) error {
		return d.replicator.ReplicateDirectory(rel)
	})
	return nil
}

func (d *Dispatcher) addFile(path string, size int64) error {
	// The watch is installed before the copy so that writes that race with
	// the copy are still reported.
	handle, err := d.table.Install(path, false)
	if err != nil {
		if errors.IsCapacityExceeded(err) {
			return err
		}
		d.log.WithError(err).WithField("path", path).Warn("Failed to watch file")
	}

	ok := d.replicate(path, func(rel string) error {
		return d.replicator.ReplicateFile(rel, replicate.Fresh)
	})
	if ok && err == nil {
		d.table.SetCursors(handle, size, size)
	}
	return nil
}

func (d *Dispatcher) remove(path string, isDir bool) {
	d.replicate(path, func(rel string) error {
		return d.replicator.RemoveDestinationPath(rel)
	})

	if isDir {
		if n := d.table.RemoveTree(path); n > 0 {
			d.log.WithFields(logrus.Fields{
				"path":    path,
				"watches": n,
			}).Debug("Removed watches")
		}
		return
	}

	if handle, ok := d.table.HandleOf(path); ok {
		d.table.Remove(handle)
	}
}

func (d *Dispatcher) modify(path string) {
	fi, ok := d.regularFile(path)
	if !ok {
		return
	}

	handle, tracked := d.table.HandleOf(path)
	mode := replicate.Append
	if tracked {
		if entry, ok := d.table.Lookup(handle); ok && fi.Size() < entry.SourceCursor {
			d.log.WithField("path", path).Debug("File was truncated. Replicating it from scratch.")
			mode = replicate.Fresh
		}
	}

	ok = d.replicate(path, func(rel string) error {
		return d.replicator.ReplicateFile(rel, mode)
	})
	if ok && tracked {
		d.table.SetCursors(handle, fi.Size(), fi.Size())
	}
}

func (d *Dispatcher) checkMetadata(path string) {
	fi, err := watch.Lstat(d.fs, path)
	if err != nil {
		d.log.WithError(err).WithField("path", path).Debug("Failed to stat")
		return
	}

	switch watch.Classify(fi.Mode()) {
	case watch.RegularFile, watch.Directory:
		d.log.WithFields(logrus.Fields{
			"path": path,
			"mode": fi.Mode().String(),
		}).Info("Metadata changed")
	default:
		d.log.WithField("path", path).Debug("Dropping metadata change for special file")
	}
}

func (d *Dispatcher) rename(change watch.Change) error {
	newPath, newOK := d.resolve(change.Handle, change.Name)
	oldPath, oldOK := d.resolve(change.FromHandle, change.FromName)
	oldOK = oldOK && !d.ignored(d.relative(oldPath))
	newOK = newOK && !d.ignored(d.relative(newPath))

	switch {
	case !oldOK && !newOK:
		d.log.WithField("change", change).Debug("Dropping rename of untracked paths")
		return nil
	case !oldOK:
		// The entry came from somewhere we don't mirror, so this is the same
		// as it being moved in.
		return d.add(newPath, change.IsDir)
	case !newOK:
		d.remove(oldPath, change.IsDir)
		return nil
	}

	d.log.WithFields(logrus.Fields{
		"from": oldPath,
		"to":   newPath,
	}).Debug("Dispatching rename")

	oldRel, newRel := d.relative(oldPath), d.relative(newPath)
	err := d.replicator.RenameDestinationPath(oldRel, newRel)
	if err != nil {
		d.log.WithError(err).WithFields(logrus.Fields{
			"from": oldPath,
			"to":   newPath,
		}).Warn("Failed to rename in destination")
	}
	d.table.Move(oldPath, newPath)

	// A path that wasn't watched before the rename, such as a directory that
	// failed to walk, is handled like a new one.
	if _, ok := d.table.HandleOf(newPath); !ok {
		return d.add(newPath, change.IsDir)
	}

	// Replicate the new path in case its contents changed along with the
	// rename, or the destination rename failed.
	fi, statErr := watch.Lstat(d.fs, newPath)
	if statErr != nil {
		d.log.WithError(statErr).WithField("path", newPath).Debug("Failed to stat renamed path")
		return nil
	}

	switch watch.Classify(fi.Mode()) {
	case watch.Directory:
		d.replicate(newPath, func(rel string) error {
			return d.replicator.ReplicateDirectory(rel)
		})
	case watch.RegularFile:
		ok := d.replicate(newPath, func(rel string) error {
			return d.replicator.ReplicateFile(rel, replicate.Fresh)
		})
		if handle, tracked := d.table.HandleOf(newPath); ok && tracked {
			d.table.SetCursors(handle, fi.Size(), fi.Size())
		}
	}
	return nil
}

// resync re-walks and replicates the whole tree after the kernel dropped
// events. Existing watches are reinstalled in place.
func (d *Dispatcher) resync() error {
	d.log.Warn("Kernel event queue overflowed. Resyncing the whole tree.")
	if err := d.walker.Walk(d.root); err != nil {
		if errors.IsCapacityExceeded(err) {
			return err
		}
		d.log.WithError(err).Warn("Failed to rewalk source")
	}

	d.replicate(d.root, func(rel string) error {
		return d.replicator.ReplicateDirectory(rel)
	})
	return nil
}

func (d *Dispatcher) forget(change watch.Change) {
	entry, ok := d.table.Lookup(change.Handle)
	if !ok {
		return
	}

	d.table.Forget(change.Handle)
	logger := d.log.WithFields(logrus.Fields{
		"path":   entry.Path,
		"handle": change.Handle,
	})
	if entry.Path == d.root {
		logger.Error("The source directory is no longer watched")
		return
	}
	logger.Debug("Watch removed by kernel")
}

// replicate runs `fn` with the path relative to the root, and logs any
// failure. Failures aren't retried: the next change to the path triggers
// another replication.
func (d *Dispatcher) replicate(path string, fn func(rel string) error) bool {
	if err := fn(d.relative(path)); err != nil {
		d.log.WithError(err).WithField("path", path).Warn("Failed to replicate")
		return false
	}
	d.log.WithField("path", path).Info("Replicated")
	return true
}

func (d *Dispatcher) regularFile(path string) (os.FileInfo, bool) {
	fi, err := watch.Lstat(d.fs, path)
	if err != nil {
		d.log.WithError(err).WithField("path", path).Debug("Failed to stat modified file")
		return nil, false
	}

	if watch.Classify(fi.Mode()) != watch.RegularFile {
		d.log.WithField("path", path).Debug("Dropping change for path that's no longer a regular file")
		return nil, false
	}
	return fi, true
}

func (d *Dispatcher) resolve(handle int, name string) (string, bool) {
	entry, ok := d.table.Lookup(handle)
	if !ok {
		return "", false
	}
	if name == "" {
		return entry.Path, true
	}
	return filepath.Join(entry.Path, name), true
}

// relative returns `path` relative to the root. The root itself is the empty
// string.
func (d *Dispatcher) relative(path string) string {
	rel, err := filepath.Rel(d.root, path)
	if err != nil || rel == "." {
		return ""
	}
	return rel
}

func (d *Dispatcher) ignored(rel string) bool {
	return rel != "" && d.Ignore != nil && d.Ignore(rel)
}
