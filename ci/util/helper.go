package util

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/lds/pkg/config"
	"github.com/sidkik/lds/pkg/errors"
	"github.com/sidkik/lds/pkg/mirror"
	"github.com/sidkik/lds/pkg/replicate"
	"github.com/sidkik/lds/pkg/watch"
)

// ErrNeverSynced is returned when the destination doesn't converge with the
// source before the deadline.
var ErrNeverSynced = errors.New("never synced")

// TestHelper runs a mirroring engine against real temporary directories,
// with the kernel notifier and rsync.
type TestHelper struct {
	Root        string
	Source      string
	Destination string
	Ignore      *config.Ignore

	engine *mirror.Engine
	done   chan error
}

// NewTestHelper creates empty source and destination directories.
func NewTestHelper(exclude []string) (*TestHelper, error) {
	root, err := ioutil.TempDir("", "lds-ci")
	if err != nil {
		return nil, errors.WithContext(err, "make root dir")
	}

	helper := &TestHelper{
		Root:        root,
		Source:      filepath.Join(root, "source"),
		Destination: filepath.Join(root, "destination"),
		Ignore:      config.NewIgnore(exclude),
	}
	for _, dir := range []string{helper.Source, helper.Destination} {
		if err := os.Mkdir(dir, 0755); err != nil {
			return nil, errors.WithContext(err, "make directory")
		}
	}
	return helper, nil
}

// Start starts mirroring, and waits for the initial replication to finish.
func (helper *TestHelper) Start(ctx context.Context) error {
	notifier, err := watch.NewNotifier()
	if err != nil {
		return errors.WithContext(err, "create notifier")
	}

	capacity, err := config.MaxWatches()
	if err != nil {
		return errors.WithContext(err, "get watch limit")
	}

	rsync := replicate.NewRsync("rsync", nil, helper.Source, helper.Destination)
	rsync.Exclude = helper.Ignore.Patterns
	if _, err := rsync.CheckVersion(); err != nil {
		return errors.WithContext(err, "check rsync")
	}

	helper.engine = mirror.New(mirror.Options{
		Source:           helper.Source,
		Destination:      helper.Destination,
		Capacity:         capacity,
		LivenessInterval: 100 * time.Millisecond,
		Ignore:           helper.Ignore.Match,
	}, notifier, rsync, log.StandardLogger())

	helper.done = make(chan error, 1)
	go func() { helper.done <- helper.engine.Run() }()
	return helper.WaitUntilSynced(ctx)
}

// Stop stops mirroring, and removes the temporary directories.
func (helper *TestHelper) Stop() error {
	if helper.engine != nil {
		helper.engine.Close()
		<-helper.done
	}
	return os.RemoveAll(helper.Root)
}

// Err returns the error that stopped the engine, if it has stopped.
func (helper *TestHelper) Err() error {
	select {
	case err := <-helper.done:
		helper.done <- err
		return err
	default:
		return nil
	}
}

// WaitUntilSynced blocks until the destination matches the source.
func (helper *TestHelper) WaitUntilSynced(ctx context.Context) error {
	isSynced := func() bool {
		src, err := Snapshot(helper.Source, helper.Ignore.Match)
		if err != nil {
			log.WithError(err).Error("Failed to snapshot source")
			return false
		}

		dst, err := Snapshot(helper.Destination, nil)
		if err != nil {
			log.WithError(err).Error("Failed to snapshot destination")
			return false
		}
		return reflect.DeepEqual(src, dst)
	}

	if !TestWithRetry(ctx, nil, isSynced) {
		return ErrNeverSynced
	}
	return nil
}

// Entry is the state of a single path in a snapshot.
type Entry struct {
	IsDir    bool
	Mode     os.FileMode
	Contents string
}

// Snapshot returns the state of every directory and regular file below
// `root`, keyed by relative path.
func Snapshot(root string, ignore func(string) bool) (map[string]Entry, error) {
	fs := afero.NewOsFs()
	snapshot := map[string]Entry{}
	err := afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.WithContext(err, "normalize path")
		}

		if ignore != nil && ignore(rel) {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		switch watch.Classify(fi.Mode()) {
		case watch.Directory:
			snapshot[rel] = Entry{IsDir: true}
		case watch.RegularFile:
			contents, err := afero.ReadFile(fs, path)
			if err != nil {
				return errors.WithContext(err, "read")
			}
			snapshot[rel] = Entry{Mode: fi.Mode().Perm(), Contents: string(contents)}
		}
		return nil
	})
	return snapshot, err
}

// TestWithRetry runs `test` until it passes, or `ctx` is done. It's rerun
// whenever `trigger` fires, and with exponential backoff otherwise.
func TestWithRetry(ctx context.Context, trigger chan struct{}, test func() bool) bool {
	maxSleepTime := 5 * time.Second
	sleepTime := 50 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return test()
		case <-time.After(sleepTime):
			sleepTime *= 2
			if sleepTime > maxSleepTime {
				sleepTime = maxSleepTime
			}
		case <-trigger:
		}

		if test() {
			return true
		}
	}
}
