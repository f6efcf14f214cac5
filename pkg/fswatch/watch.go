// Package fswatch notifies when configuration files change.
package fswatch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/lds/pkg/errors"
)

var fs = afero.NewOsFs()

// Watch watches the given files. It sends an event on the returned channel
// whenever one of them is written, created, removed or renamed. Bursts of
// changes are combined into a single event.
//
// The files' parent directories are watched rather than the files
// themselves, so that files replaced by editors, or created after Watch is
// called, are still noticed.
func Watch(files ...string) (chan struct{}, error) {
	dirs, err := getPathsToWatch(files)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range dirs {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}

	go func() {
		for err := range watcher.Errors {
			log.WithError(err).Debug("Config watcher error")
		}
	}()
	return combineUpdates(filterEvents(watcher.Events, files)), nil
}

// filterEvents drops events for files in the watched directories that
// weren't requested.
func filterEvents(events <-chan fsnotify.Event, files []string) <-chan fsnotify.Event {
	wanted := map[string]struct{}{}
	for _, file := range files {
		wanted[filepath.Clean(file)] = struct{}{}
	}

	filtered := make(chan fsnotify.Event)
	go func() {
		defer close(filtered)
		for event := range events {
			if _, ok := wanted[filepath.Clean(event.Name)]; !ok {
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			filtered <- event
		}
	}()
	return filtered
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for range updates {
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

func getPathsToWatch(files []string) (paths []string, err error) {
	seen := map[string]struct{}{}
	for _, file := range files {
		dir := filepath.Dir(filepath.Clean(file))
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}

		fi, err := fs.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.FileNotFound{Path: dir}
			}
			return nil, errors.WithContext(err, "stat")
		}

		if !fi.IsDir() {
			return nil, errors.NotDirectory{Path: dir}
		}
		paths = append(paths, dir)
	}
	return paths, nil
}
