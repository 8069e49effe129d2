package ubundle

import (
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingActivator struct {
	starts int32
	stops  int32
	onStart func(*BundleContext) error
	onStop  func(*BundleContext) error
}

func (a *recordingActivator) Start(ctx *BundleContext) error {
	atomic.AddInt32(&a.starts, 1)
	if a.onStart != nil {
		return a.onStart(ctx)
	}
	return nil
}

func (a *recordingActivator) Stop(ctx *BundleContext) error {
	atomic.AddInt32(&a.stops, 1)
	if a.onStop != nil {
		return a.onStop(ctx)
	}
	return nil
}

func newTestFramework(t *testing.T, timeout time.Duration) *Framework {
	t.Helper()
	fw := NewFramework(nil, NopLogger{}, timeout)
	require.NoError(t, fw.Start(0))
	return fw
}

// S1 — happy start/stop: exact transition sequence and exactly-once activator calls.
func TestHappyStartStop(t *testing.T) {
	fw := newTestFramework(t, 5*time.Second)

	var events []BundleEventType
	var mu sync.Mutex

	act := &recordingActivator{
		onStart: func(*BundleContext) error { time.Sleep(10 * time.Millisecond); return nil },
		onStop:  func(*BundleContext) error { time.Sleep(10 * time.Millisecond); return nil },
	}
	b, err := fw.Context().InstallBundle("b1", act)
	require.NoError(t, err)
	require.NoError(t, b.Resolve())

	fw.OnBundleEvent("rec", 0, func(e BundleEvent) error {
		mu.Lock()
		events = append(events, e.Type)
		mu.Unlock()
		return nil
	})

	require.NoError(t, b.Start(0))
	require.NoError(t, b.Stop(0))

	assert.Equal(t, StateResolved, b.State())
	assert.EqualValues(t, 1, atomic.LoadInt32(&act.starts))
	assert.EqualValues(t, 1, atomic.LoadInt32(&act.stops))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 4)
	assert.Equal(t, []BundleEventType{BundleEventStarting, BundleEventStarted, BundleEventStopping, BundleEventStopped}, events)
}

// S2 — start timeout: error text, final state, StartFailed cleanup ran once.
func TestStartTimeout(t *testing.T) {
	fw := newTestFramework(t, 50*time.Millisecond)

	act := &recordingActivator{
		onStart: func(*BundleContext) error { time.Sleep(200 * time.Millisecond); return nil },
	}
	b, err := fw.Context().InstallBundle("b1", act)
	require.NoError(t, err)
	require.NoError(t, b.Resolve())

	err = b.Start(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Time-out during bundle start()")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateResolved, b.State())
}

// S3 — uninstall races start: unbounded timeout, start blocks, concurrent
// uninstall forces an UninstalledDuring error and a terminal state.
func TestUninstallRacesStart(t *testing.T) {
	fw := newTestFramework(t, 0)

	release := make(chan struct{})
	act := &recordingActivator{
		onStart: func(*BundleContext) error { <-release; return nil },
	}
	b, err := fw.Context().InstallBundle("b1", act)
	require.NoError(t, err)
	require.NoError(t, b.Resolve())

	startDone := make(chan error, 1)
	go func() { startDone <- b.Start(0) }()

	// give Start a moment to land in STARTING before uninstalling.
	require.Eventually(t, func() bool { return b.State() == StateStarting }, time.Second, time.Millisecond)
	require.NoError(t, b.Uninstall())

	close(release) // let the now-disowned activator goroutine unwind so the test doesn't leak it

	err = <-startDone
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUninstalledDuring)
	assert.Equal(t, StateUninstalled, b.State())
}

// S4 — worker keep-alive: a worker idle past keepAlive self-retires, and a
// later Start transparently gets a (possibly fresh) worker.
func TestWorkerKeepAlive(t *testing.T) {
	fw := newTestFramework(t, 5*time.Second)

	act := &recordingActivator{}
	b, err := fw.Context().InstallBundle("b1", act)
	require.NoError(t, err)
	require.NoError(t, b.Resolve())

	w := fw.acquireWorker(b)
	b.mu.Lock()
	b.worker = nil
	b.mu.Unlock()
	fw.pool.pushFrontLive(w)

	require.Eventually(t, func() bool { return !fw.pool.contains(w) }, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Start(0))
	assert.Equal(t, StateActive, b.State())
}

// S6 — listener failure isolation: a panicking listener must not prevent
// delivery to the next one.
func TestListenerFailureIsolation(t *testing.T) {
	fw := newTestFramework(t, 5*time.Second)

	var secondSaw int32
	fw.OnBundleEvent("first", 10, func(BundleEvent) error { panic("boom") })
	fw.OnBundleEvent("second", 0, func(BundleEvent) error {
		atomic.AddInt32(&secondSaw, 1)
		return nil
	})

	act := &recordingActivator{}
	b, err := fw.Context().InstallBundle("b1", act)
	require.NoError(t, err)
	require.NoError(t, b.Resolve())
	require.NoError(t, b.Start(0))

	assert.GreaterOrEqual(t, atomic.LoadInt32(&secondSaw), int32(2)) // STARTING + STARTED
}

// Property 5 — after Shutdown every non-framework bundle lands in
// INSTALLED and the stop-event slot is set exactly once per cycle.
func TestStopAllBundlesOnShutdown(t *testing.T) {
	fw := newTestFramework(t, 5*time.Second)

	var bundles []*Bundle
	for _, name := range []string{"b1", "b2", "b3"} {
		b, err := fw.Context().InstallBundle(name, &recordingActivator{})
		require.NoError(t, err)
		require.NoError(t, b.Resolve())
		require.NoError(t, b.Start(0))
		bundles = append(bundles, b)
	}

	require.NoError(t, fw.Stop(0))
	evt := fw.WaitForStop(5 * time.Second)
	assert.Equal(t, FrameworkStopped, evt.Type)

	for _, b := range bundles {
		assert.Equal(t, StateInstalled, b.State())
	}

	// calling WaitForStop again must return the same recorded event (property 6).
	evt2 := fw.WaitForStop(0)
	assert.Equal(t, evt.Type, evt2.Type)
}

// S5 — framework update restarts every bundle that was active before it.
func TestFrameworkUpdateRestartsActiveBundles(t *testing.T) {
	fw := newTestFramework(t, 5*time.Second)

	var bundles []*Bundle
	for _, name := range []string{"b1", "b2", "b3"} {
		b, err := fw.Context().InstallBundle(name, &recordingActivator{})
		require.NoError(t, err)
		require.NoError(t, b.Resolve())
		require.NoError(t, b.Start(0))
		bundles = append(bundles, b)
	}

	done := make(chan FrameworkEvent, 1)
	fw.OnFrameworkEvent("wait-update", 0, func(e FrameworkEvent) error {
		if e.Type == FrameworkStoppedUpdate {
			select {
			case done <- e:
			default:
			}
		}
		return nil
	})

	require.NoError(t, fw.Update())
	select {
	case evt := <-done:
		assert.Equal(t, FrameworkStoppedUpdate, evt.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("update did not complete")
	}

	require.Eventually(t, func() bool {
		for _, b := range bundles {
			if b.State() != StateActive {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
}

// Property 7 — service events for one registration are observed by one
// subscriber in registration order.
func TestServiceEventOrdering(t *testing.T) {
	fw := newTestFramework(t, 5*time.Second)

	b, err := fw.Context().InstallBundle("b1", &recordingActivator{})
	require.NoError(t, err)
	require.NoError(t, b.Resolve())
	require.NoError(t, b.Start(0))

	var got []ServiceEventType
	fw.OnServiceEvent("svc-rec", 0, nil, func(e ServiceEvent) error {
		got = append(got, e.Type)
		return nil
	})

	type greeterIface interface{ Greet() string }
	iface := reflect.TypeOf((*greeterIface)(nil)).Elem()
	reg, err := fw.services.register(b, iface, nil, nil)
	require.NoError(t, err)
	require.NoError(t, fw.services.unregister(reg))

	require.Len(t, got, 2)
	assert.Equal(t, ServiceRegistered, got[0])
	assert.Equal(t, ServiceUnregistering, got[1])
}
