package watch

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/lds/pkg/errors"
)

// Walker installs watches on the existing contents of a directory.
type Walker struct {
	fs    afero.Fs
	table *Table
	log   logrus.FieldLogger

	// Exclude reports whether a path should be neither watched nor walked.
	Exclude func(path string) bool
}

// NewWalker returns a Walker that installs watches in `table`.
func NewWalker(fs afero.Fs, table *Table, log logrus.FieldLogger) *Walker {
	return &Walker{fs: fs, table: table, log: log}
}

// Walk installs a watch on every directory and regular file below `dir`. The
// watch on `dir` itself is the caller's responsibility.
//
// A child that can't be watched is skipped along with its subtree, and the
// walk continues with its siblings. Walk only fails if `dir` can't be listed,
// or if the table runs out of capacity.
func (w *Walker) Walk(dir string) error {
	children, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return errors.WithContext(err, "list directory")
	}

	for _, child := range children {
		path := filepath.Join(dir, child.Name())
		if w.Exclude != nil && w.Exclude(path) {
			w.log.WithField("path", path).Debug("Skipping excluded path")
			continue
		}

		fi, err := Lstat(w.fs, path)
		if err != nil {
			// The entry was most likely removed since the directory was
			// listed. If so, its deletion will be reported as an event.
			w.log.WithError(err).WithField("path", path).Warn("Failed to stat")
			continue
		}

		switch Classify(fi.Mode()) {
		case Special:
			w.log.WithField("path", path).Debug("Skipping special file")
		case Unknown:
			w.log.WithFields(logrus.Fields{
				"path": path,
				"mode": fi.Mode().String(),
			}).Warn("Skipping unknown file type")
		case RegularFile:
			if _, err := w.table.Install(path, false); err != nil {
				if errors.IsCapacityExceeded(err) {
					return err
				}
				w.log.WithError(err).WithField("path", path).Warn("Failed to watch file")
			}
		case Directory:
			if err := w.watchDirectory(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// watchDirectory installs a watch on `path` and walks it. Either both
// succeed, or no watches are left installed for the subtree.
func (w *Walker) watchDirectory(path string) error {
	if _, err := w.table.Install(path, true); err != nil {
		if errors.IsCapacityExceeded(err) {
			return err
		}
		w.log.WithError(err).WithField("path", path).Warn("Failed to watch directory")
		return nil
	}

	if err := w.Walk(path); err != nil {
		if errors.IsCapacityExceeded(err) {
			return err
		}
		w.table.RemoveTree(path)
		w.log.WithError(err).WithField("path", path).Warn(
			"Failed to walk directory. Changes below it won't be mirrored.")
	}
	return nil
}

// FileType is the classification of a directory entry.
type FileType int

const (
	// RegularFile is watched, and replicated.
	RegularFile FileType = iota

	// Directory is watched, walked, and replicated.
	Directory

	// Special covers symbolic links, devices, FIFOs and sockets. They're
	// never watched or replicated.
	Special

	// Unknown is any other file type.
	Unknown
)

// Classify returns the FileType of an entry with the given mode. The mode
// must come from an lstat so that symbolic links aren't followed.
func Classify(mode os.FileMode) FileType {
	switch {
	case mode&(os.ModeSymlink|os.ModeDevice|os.ModeCharDevice|
		os.ModeNamedPipe|os.ModeSocket) != 0:
		return Special
	case mode.IsDir():
		return Directory
	case mode.IsRegular():
		return RegularFile
	}
	return Unknown
}

// Lstat stats `path` without following symbolic links, if the filesystem
// supports it.
func Lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if lstater, ok := fs.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(path)
		return fi, err
	}
	return fs.Stat(path)
}
