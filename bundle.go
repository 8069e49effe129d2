package ubundle

import (
	"sync"
	"time"
)

// Bundle is the C1 component: per-bundle mutable data. id is unique and
// 64-bit; id 0 is reserved for the framework bundle. state, op, aborted,
// ctx and worker are all guarded by mu (the "bundle mutex" of the
// concurrency model, §5 mutex 4).
type Bundle struct {
	id       int64
	symbolic string
	fw       *Framework
	activator Activator

	mu      sync.Mutex
	state   BundleState
	op      operation
	abortF  aborted
	ctx     *BundleContext
	worker  *bundleWorker // back-reference, never ownership
}

// ID returns the bundle's unique identifier.
func (b *Bundle) ID() int64 { return b.id }

// SymbolicName returns the bundle's human-readable name.
func (b *Bundle) SymbolicName() string { return b.symbolic }

// State returns the bundle's current lifecycle state.
func (b *Bundle) State() BundleState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Resolve transitions INSTALLED -> RESOLVED.
func (b *Bundle) Resolve() error {
	b.mu.Lock()
	if b.state != StateInstalled {
		err := IllegalState(StateInstalled, b.state)
		b.mu.Unlock()
		return err
	}
	b.state = StateResolved
	b.mu.Unlock()

	b.publish(BundleEventResolved)
	return nil
}

// Start drives RESOLVED -> STARTING -> ACTIVE via the bundle's worker. On
// activator failure it lands back in RESOLVED after running StartFailed
// cleanup and returns the error (spec §4.1).
func (b *Bundle) Start(opts StartOptions) error {
	b.mu.Lock()
	if b.state != StateResolved {
		err := IllegalState(StateResolved, b.state)
		b.mu.Unlock()
		return err
	}
	b.state = StateStarting
	b.op = opActivating
	b.ctx = newBundleContext(b, b.fw)
	b.mu.Unlock()

	b.publish(BundleEventStarting)

	w := b.fw.acquireWorker(b)

	b.fw.resolver.Lock()
	err := w.startAndWait(b, opCodeStart, b.fw.startStopTimeout())
	b.fw.resolver.Unlock()

	b.mu.Lock()
	b.op = opIdle
	b.mu.Unlock()

	if err == nil {
		b.publish(BundleEventStarted)
	}
	return err
}

// Stop drives ACTIVE -> STOPPING -> RESOLVED via the bundle's worker.
// Stop always lands in RESOLVED, whether or not the activator's Stop
// returned an error (spec §4.1: "on failure still lands in RESOLVED ...
// never in STOPPING").
func (b *Bundle) Stop(opts StopOptions) error {
	b.mu.Lock()
	if b.state != StateActive {
		err := IllegalState(StateActive, b.state)
		b.mu.Unlock()
		return err
	}
	b.state = StateStopping
	b.op = opDeactivating
	b.mu.Unlock()

	b.publish(BundleEventStopping)

	w := b.fw.acquireWorker(b)

	b.fw.resolver.Lock()
	err := w.startAndWait(b, opCodeStop, b.fw.startStopTimeout())
	b.fw.resolver.Unlock()

	b.mu.Lock()
	b.op = opIdle
	b.mu.Unlock()

	b.publish(BundleEventStopped)
	return err
}

// Uninstall forces any non-terminal bundle to UNINSTALLED, aborting any
// in-flight start/stop. UNINSTALLED is terminal: no further transitions are
// permitted afterward.
func (b *Bundle) Uninstall() error {
	b.mu.Lock()
	if b.state == StateUninstalled {
		b.mu.Unlock()
		return nil
	}
	b.state = StateUninstalled
	b.mu.Unlock()

	// Wake any caller blocked in startAndWait for this bundle so it observes
	// the UNINSTALLED state on its next predicate check.
	b.fw.resolver.Lock()
	b.fw.resolver.Broadcast()
	b.fw.resolver.Unlock()

	b.fw.services.unregisterAllOwnedBy(b)

	b.mu.Lock()
	if b.ctx != nil {
		b.ctx.invalidate()
		b.ctx = nil
	}
	b.op = opIdle
	b.mu.Unlock()

	b.publish(BundleEventUninstalled)
	return nil
}

// start0 is invoked by the bundle's worker on the START opcode. It runs on
// the worker's own goroutine, never holding the resolver monitor. A late
// completion after the caller has already aborted (abortF == abortedYes)
// is discarded — the abort flag is authoritative (spec §9 open question).
func (b *Bundle) start0() error {
	ctx := b.currentContext()
	err := callActivator(b.activator.Start, ctx)

	b.mu.Lock()
	if b.abortF == abortedYes {
		b.mu.Unlock()
		return err
	}
	if err != nil {
		b.mu.Unlock()
		b.startFailedCleanup()
		return ActivatorFailed(b.id, "start", err)
	}
	b.state = StateActive
	b.mu.Unlock()
	return nil
}

// stop1 is invoked by the bundle's worker on the STOP opcode; symmetric to
// start0. Stop always finishes cleanup (service unregistration, context
// invalidation, state -> RESOLVED) regardless of whether the activator's
// Stop returned an error.
func (b *Bundle) stop1() error {
	ctx := b.currentContext()
	err := callActivator(b.activator.Stop, ctx)

	b.mu.Lock()
	if b.abortF == abortedYes {
		b.mu.Unlock()
		return err
	}
	b.mu.Unlock()

	b.finishStop()

	if err != nil {
		return ActivatorFailed(b.id, "stop", err)
	}
	return nil
}

func callActivator(fn func(*BundleContext) error, ctx *BundleContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicAsError(r)
		}
	}()
	return fn(ctx)
}

func (b *Bundle) currentContext() *BundleContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// startFailedCleanup mirrors the original design's StartFailed(): drop back
// to RESOLVED and invalidate the bundle context, without touching the
// worker (the caller decides the worker's fate).
func (b *Bundle) startFailedCleanup() {
	b.fw.services.unregisterAllOwnedBy(b)

	b.mu.Lock()
	b.state = StateResolved
	if b.ctx != nil {
		b.ctx.invalidate()
		b.ctx = nil
	}
	b.mu.Unlock()
}

func (b *Bundle) finishStop() {
	b.fw.services.unregisterAllOwnedBy(b)

	b.mu.Lock()
	b.state = StateResolved
	if b.ctx != nil {
		b.ctx.invalidate()
		b.ctx = nil
	}
	b.mu.Unlock()
}

// resetBundleThread drops the bundle's back-reference to its worker. Called
// once an operation (successful or aborted) has fully concluded.
func (b *Bundle) resetBundleThread() {
	b.mu.Lock()
	b.worker = nil
	b.mu.Unlock()
}

func (b *Bundle) publish(t BundleEventType) {
	b.fw.listeners.bundles.Publish(BundleEvent{
		Type:     t,
		BundleID: b.id,
		Symbolic: b.symbolic,
		Time:     time.Now(),
	})
}

// forceInstalled is used only by the framework's StopAllBundles sweep
// (§4.7) to push every non-framework bundle back to INSTALLED while the
// resolver lock is held, bypassing the normal Stop() path since the
// activator has already run (or the bundle was never started).
func (b *Bundle) forceInstalled() {
	b.mu.Lock()
	b.state = StateInstalled
	b.op = opIdle
	b.mu.Unlock()
}
