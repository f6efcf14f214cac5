package mirror

import (
	"github.com/sidkik/lds/pkg/replicate"
)

// Coordinator orders the initial walk against live events, and serializes
// replication. Both of its locks are channels with capacity one, so a
// goroutine blocked on them can be reasoned about the same way as one
// blocked on a read.
type Coordinator struct {
	initBarrier chan struct{}
	syncGate    chan struct{}
}

// NewCoordinator returns a Coordinator with both locks released.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		initBarrier: make(chan struct{}, 1),
		syncGate:    make(chan struct{}, 1),
	}
}

// HoldBarrier acquires the initialization barrier. It must be called before
// any event consumer is started.
func (c *Coordinator) HoldBarrier() {
	c.initBarrier <- struct{}{}
}

// ReleaseBarrier releases the initialization barrier once the source tree is
// fully watched. It blocks if the barrier isn't held.
func (c *Coordinator) ReleaseBarrier() {
	<-c.initBarrier
}

// AwaitBarrier blocks until the initialization barrier has been released.
func (c *Coordinator) AwaitBarrier() {
	c.initBarrier <- struct{}{}
	<-c.initBarrier
}

// Serialize runs fn while holding the sync gate.
func (c *Coordinator) Serialize(fn func() error) error {
	c.syncGate <- struct{}{}
	defer func() { <-c.syncGate }()
	return fn()
}

// Gate returns a Replicator whose calls all hold the sync gate for their
// duration.
func (c *Coordinator) Gate(r replicate.Replicator) replicate.Replicator {
	return gatedReplicator{coordinator: c, replicator: r}
}

type gatedReplicator struct {
	coordinator *Coordinator
	replicator  replicate.Replicator
}

func (g gatedReplicator) ReplicateDirectory(relPath string) error {
	return g.coordinator.Serialize(func() error {
		return g.replicator.ReplicateDirectory(relPath)
	})
}

func (g gatedReplicator) ReplicateFile(relPath string, mode replicate.Mode) error {
	return g.coordinator.Serialize(func() error {
		return g.replicator.ReplicateFile(relPath, mode)
	})
}

func (g gatedReplicator) RemoveDestinationPath(relPath string) error {
	return g.coordinator.Serialize(func() error {
		return g.replicator.RemoveDestinationPath(relPath)
	})
}

func (g gatedReplicator) RenameDestinationPath(oldRelPath, newRelPath string) error {
	return g.coordinator.Serialize(func() error {
		return g.replicator.RenameDestinationPath(oldRelPath, newRelPath)
	})
}
