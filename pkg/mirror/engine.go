package mirror

import (
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sidkik/lds/pkg/errors"
	"github.com/sidkik/lds/pkg/replicate"
	"github.com/sidkik/lds/pkg/watch"
)

// Options configures an Engine.
type Options struct {
	// Source and Destination are absolute paths to existing directories.
	Source      string
	Destination string

	// Capacity is the maximum number of watches to install.
	Capacity int

	LivenessInterval time.Duration

	// Ignore reports whether a path relative to Source is excluded from
	// mirroring. It may be nil.
	Ignore func(relPath string) bool

	// Clock and Fs default to the real clock and the OS filesystem.
	Clock clockwork.Clock
	Fs    afero.Fs
}

// Engine mirrors a source directory into a destination directory.
type Engine struct {
	opts Options
	log  logrus.FieldLogger

	notifier    watch.Notifier
	stream      *watch.Stream
	table       *watch.Table
	walker      *watch.Walker
	coordinator *Coordinator
	replicator  replicate.Replicator
	dispatcher  *Dispatcher
	supervisor  *Supervisor
}

// New creates an Engine that watches through `notifier`, and copies changes
// with `replicator`. The Engine takes ownership of `notifier`.
func New(opts Options, notifier watch.Notifier, replicator replicate.Replicator,
	log logrus.FieldLogger) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	coordinator := NewCoordinator()
	gated := coordinator.Gate(replicator)
	table := watch.NewTable(notifier, opts.Capacity)

	walker := watch.NewWalker(opts.Fs, table, log)
	walker.Exclude = func(path string) bool {
		rel, err := filepath.Rel(opts.Source, path)
		return err == nil && opts.Ignore != nil && opts.Ignore(rel)
	}

	dispatcher := NewDispatcher(opts.Source, opts.Fs, table, walker, gated, log)
	dispatcher.Ignore = opts.Ignore

	return &Engine{
		opts:        opts,
		log:         log,
		notifier:    notifier,
		stream:      watch.NewStream(notifier),
		table:       table,
		walker:      walker,
		coordinator: coordinator,
		replicator:  gated,
		dispatcher:  dispatcher,
		supervisor:  NewSupervisor(opts.Clock, opts.LivenessInterval, log),
	}
}

// Run watches the source tree, replicates it in full, and then mirrors
// changes until a fatal error occurs. It never returns nil.
func (e *Engine) Run() error {
	e.coordinator.HoldBarrier()
	e.supervisor.Go("events", e.consume)

	if err := e.initialize(); err != nil {
		return err
	}
	e.coordinator.ReleaseBarrier()

	e.log.WithFields(logrus.Fields{
		"source":      e.opts.Source,
		"destination": e.opts.Destination,
		"watches":     e.table.Len(),
		"capacity":    e.table.Capacity(),
	}).Info("Mirroring changes")
	return e.supervisor.Wait()
}

// Close stops the event worker.
func (e *Engine) Close() error {
	return e.notifier.Close()
}

// initialize watches the whole source tree, and then copies it. Changes made
// during the copy are queued by the kernel, and handled once the barrier is
// released.
func (e *Engine) initialize() error {
	if _, err := e.table.Install(e.opts.Source, true); err != nil {
		return errors.WithContext(err, "watch source")
	}

	if err := e.walker.Walk(e.opts.Source); err != nil {
		return errors.WithContext(err, "walk source")
	}
	e.log.WithField("watches", e.table.Len()).Info("Watching source")

	if err := e.replicator.ReplicateDirectory(""); err != nil {
		return errors.WithContext(err, "initial replication")
	}
	return nil
}

func (e *Engine) consume() error {
	e.coordinator.AwaitBarrier()

	for {
		buf, err := e.stream.Read()
		if err != nil {
			return err
		}

		dec := watch.NewDecoder(buf)
		for dec.Next() {
			if err := e.dispatcher.Dispatch(dec.Change()); err != nil {
				return err
			}
		}

		if err := dec.Err(); err != nil {
			e.log.WithError(err).Warn("Dropping malformed change records")
		}
	}
}
