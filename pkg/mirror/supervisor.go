package mirror

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/sidkik/lds/pkg/errors"
)

// Supervisor runs the long-lived workers, and fails as soon as any of them
// stops. A stopped worker means that changes are being silently missed, so
// there's no attempt to restart it.
type Supervisor struct {
	clock    clockwork.Clock
	interval time.Duration
	log      logrus.FieldLogger

	lock    sync.Mutex
	workers []*worker

	fatal chan error
}

type worker struct {
	name string

	// done is closed when the worker returns. err is only safe to read after
	// that.
	done chan struct{}
	err  error
}

// NewSupervisor returns a Supervisor that checks worker liveness every
// `interval`.
func NewSupervisor(clock clockwork.Clock, interval time.Duration, log logrus.FieldLogger) *Supervisor {
	return &Supervisor{
		clock:    clock,
		interval: interval,
		log:      log,
		fatal:    make(chan error, 1),
	}
}

// Go starts `fn` as a supervised worker. Workers are expected to run
// forever, so any return is treated as a failure.
func (s *Supervisor) Go(name string, fn func() error) {
	w := &worker{name: name, done: make(chan struct{})}

	s.lock.Lock()
	s.workers = append(s.workers, w)
	s.lock.Unlock()

	go func() {
		defer close(w.done)
		defer func() {
			if r := recover(); r != nil {
				w.err = fmt.Errorf("panic: %v", r)
			}
		}()

		w.err = fn()
		if errors.IsCapacityExceeded(w.err) {
			s.Fatal(w.err)
		}
	}()
}

// Fatal makes Wait return `err`. Only the first fatal error is kept.
func (s *Supervisor) Fatal(err error) {
	select {
	case s.fatal <- err:
	default:
	}
}

// Wait blocks until a fatal error is reported, or a worker stops.
func (s *Supervisor) Wait() error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case err := <-s.fatal:
			return err
		case <-ticker.Chan():
			if err := s.checkWorkers(); err != nil {
				return err
			}
		}
	}
}

func (s *Supervisor) checkWorkers() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, w := range s.workers {
		select {
		case <-w.done:
		default:
			continue
		}

		s.log.WithError(w.err).WithField("worker", w.name).Error("Worker stopped")
		if w.err == nil {
			return errors.Errorf("worker %s stopped", w.name)
		}
		return errors.WithContext(w.err, fmt.Sprintf("worker %s", w.name))
	}
	return nil
}
