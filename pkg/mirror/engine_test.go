package mirror

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/lds/pkg/errors"
	"github.com/sidkik/lds/pkg/replicate"
	"github.com/sidkik/lds/pkg/replicate/mocks"
	"github.com/sidkik/lds/pkg/watch"
	"github.com/sidkik/lds/pkg/watch/watchtest"
)

type engineTest struct {
	fs         afero.Fs
	clock      clockwork.FakeClock
	notifier   *watchtest.Notifier
	replicator *mocks.Replicator
	engine     *Engine
	result     chan error
}

func newEngineTest(t *testing.T, capacity int) *engineTest {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src/dir", 0755))
	require.NoError(t, afero.WriteFile(fs, "/src/a.txt", []byte("hello"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/src/dir/b.txt", []byte("b"), 0644))
	require.NoError(t, fs.MkdirAll("/dst", 0755))

	clock := clockwork.NewFakeClock()
	notifier := watchtest.NewNotifier()
	replicator := &mocks.Replicator{}
	log, _ := logrusTest.NewNullLogger()

	engine := New(Options{
		Source:           "/src",
		Destination:      "/dst",
		Capacity:         capacity,
		LivenessInterval: time.Second,
		Clock:            clock,
		Fs:               fs,
	}, notifier, replicator, log)

	return &engineTest{
		fs:         fs,
		clock:      clock,
		notifier:   notifier,
		replicator: replicator,
		engine:     engine,
		result:     make(chan error, 1),
	}
}

func (et *engineTest) run() {
	go func() { et.result <- et.engine.Run() }()
}

func (et *engineTest) stop(t *testing.T) error {
	require.NoError(t, et.engine.Close())
	waitFor(t, lastWorker(et.engine.supervisor).done, "event worker never stopped")

	et.clock.BlockUntil(1)
	et.clock.Advance(time.Second)
	select {
	case err := <-et.result:
		return err
	case <-time.After(testTimeout):
		t.Fatal("Run never returned")
	}
	return nil
}

func TestEngineEndToEnd(t *testing.T) {
	et := newEngineTest(t, 100)

	initialized := make(chan struct{})
	et.replicator.On("ReplicateDirectory", "").
		Run(func(mock.Arguments) { close(initialized) }).
		Return(nil).Once()

	started := make(chan struct{})
	release := make(chan struct{})
	et.replicator.On("ReplicateFile", "a.txt", replicate.Append).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil).Once()

	et.run()
	waitFor(t, initialized, "initial replication never ran")

	// The whole tree is watched before the initial replication.
	assert.Equal(t, []string{"/src", "/src/a.txt", "/src/dir", "/src/dir/b.txt"},
		et.notifier.Watched())

	handle, ok := et.notifier.Handle("/src/a.txt")
	require.True(t, ok)
	et.notifier.Send(watchtest.Encode(watchtest.Record{Handle: handle, Mask: watch.InModify}))
	waitFor(t, started, "modification was never replicated")

	// No other replication can start while the first one is running.
	second := make(chan struct{})
	et.replicator.On("RemoveDestinationPath", "other").
		Run(func(mock.Arguments) { close(second) }).
		Return(nil).Once()
	go et.engine.replicator.RemoveDestinationPath("other")

	select {
	case <-second:
		t.Fatal("replications ran concurrently")
	case <-time.After(100 * time.Millisecond):
	}
	close(release)
	waitFor(t, second, "second replication never ran")

	err := et.stop(t)
	assert.Error(t, err)
	assert.Equal(t, watchtest.ErrClosed, errors.RootCause(err))

	et.replicator.AssertExpectations(t)
	et.replicator.AssertNumberOfCalls(t, "ReplicateFile", 1)
}

func TestEngineEventsWaitForInitialization(t *testing.T) {
	et := newEngineTest(t, 100)

	// Queue a change before the engine starts. It must not be handled until
	// the initial replication is done.
	et.notifier.Send(watchtest.Encode(watchtest.Record{Handle: 1, Mask: watch.InCreate, Name: "c.txt"}))
	require.NoError(t, afero.WriteFile(et.fs, "/src/c.txt", []byte("c"), 0644))

	var order []string
	initialized := make(chan struct{})
	et.replicator.On("ReplicateDirectory", "").
		Run(func(mock.Arguments) {
			order = append(order, "initial")
			close(initialized)
		}).
		Return(nil).Once()

	created := make(chan struct{})
	et.replicator.On("ReplicateFile", "c.txt", replicate.Fresh).
		Run(func(mock.Arguments) {
			order = append(order, "c.txt")
			close(created)
		}).
		Return(nil).Once()

	et.run()
	waitFor(t, initialized, "initial replication never ran")
	waitFor(t, created, "queued change was never handled")
	assert.Equal(t, []string{"initial", "c.txt"}, order)

	et.stop(t)
}

func TestEngineInitialCapacityExceeded(t *testing.T) {
	et := newEngineTest(t, 2)
	et.run()

	select {
	case err := <-et.result:
		assert.True(t, errors.IsCapacityExceeded(err))
	case <-time.After(testTimeout):
		t.Fatal("Run never returned")
	}
	et.replicator.AssertNotCalled(t, "ReplicateDirectory", "")
}

func TestEngineInitialReplicationFailure(t *testing.T) {
	et := newEngineTest(t, 100)
	et.replicator.On("ReplicateDirectory", "").Return(errors.New("rsync failed")).Once()
	et.run()

	select {
	case err := <-et.result:
		assert.EqualError(t, err, "initial replication: rsync failed")
	case <-time.After(testTimeout):
		t.Fatal("Run never returned")
	}
}

func TestEngineCapacityExceededWhileRunning(t *testing.T) {
	et := newEngineTest(t, 4)

	initialized := make(chan struct{})
	et.replicator.On("ReplicateDirectory", "").
		Run(func(mock.Arguments) { close(initialized) }).
		Return(nil).Once()
	et.run()
	waitFor(t, initialized, "initial replication never ran")

	require.NoError(t, afero.WriteFile(et.fs, "/src/c.txt", []byte("c"), 0644))
	et.notifier.Send(watchtest.Encode(watchtest.Record{Handle: 1, Mask: watch.InCreate, Name: "c.txt"}))

	// The supervisor exits without waiting for a liveness check.
	select {
	case err := <-et.result:
		assert.True(t, errors.IsCapacityExceeded(err))
	case <-time.After(testTimeout):
		t.Fatal("Run never returned")
	}
}
