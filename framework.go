package ubundle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Framework is the C7 component: the top-level state machine that owns the
// bundle registry, service registry, listener hub, resolver monitor and
// worker pool, and drives orderly shutdown of every installed bundle. The
// framework bundle itself is bundle id 0; it has no activator, and its
// transitions are driven exclusively by Framework's own methods.
type Framework struct {
	logger Logger

	mu    sync.Mutex // guards state/op/sysCtx, the framework bundle's own "bundle mutex"
	state BundleState
	op    operation

	resolver *resolverMonitor
	pool     *workerPool
	registry *bundleRegistry
	services *serviceRegistry
	listeners *ListenerHub

	frameworkBundle *Bundle
	sysCtx          *BundleContext
	nextID          atomic.Int64

	startStopTO time.Duration

	stopSlot stopEventSlot // guarded by resolver's mutex

	shutdownMu      sync.Mutex
	shutdownRunning bool
	shutdownDone    chan struct{}
}

// NewFramework constructs a framework in the INSTALLED state. cfg is the
// opaque construction map from spec.md §6; startStopTimeout bounds every
// Bundle.Start/Stop call (0 means unbounded, matching scenario seed S3).
func NewFramework(cfg map[string]string, logger Logger, startStopTimeout time.Duration) *Framework {
	if logger == nil {
		logger = NopLogger{}
	}

	fw := &Framework{
		logger:      logger,
		state:       StateInstalled,
		resolver:    newResolverMonitor(),
		pool:        newWorkerPool(),
		registry:    newBundleRegistry(),
		startStopTO: startStopTimeout,
	}
	fw.listeners = newListenerHub(logger)
	fw.services = newServiceRegistry(fw.listeners)

	fw.frameworkBundle = &Bundle{id: 0, symbolic: "system.bundle", fw: fw, state: StateInstalled}
	_ = fw.registry.add(fw.frameworkBundle)
	fw.nextID.Store(1)

	_, _ = LogLevelFromConfig(cfg) // parsed eagerly; a parse error is discarded and construction never fails

	logger.Debug("framework constructed", "startStopTimeout", startStopTimeout)
	return fw
}

func (fw *Framework) startStopTimeout() time.Duration { return fw.startStopTO }

// acquireWorker returns b's current worker if it has one, otherwise pops a
// live worker from the pool or spawns a fresh one.
func (fw *Framework) acquireWorker(b *Bundle) *bundleWorker {
	b.mu.Lock()
	if b.worker != nil {
		w := b.worker
		b.mu.Unlock()
		return w
	}
	b.mu.Unlock()

	w := fw.pool.popLive()
	if w == nil {
		w = newBundleWorker(fw)
		fw.logger.Debug("spawned bundle worker")
	}

	b.mu.Lock()
	b.worker = w
	b.mu.Unlock()
	return w
}

// installBundle assigns a fresh id and registers a new bundle in the
// INSTALLED state.
func (fw *Framework) installBundle(symbolicName string, act Activator) (*Bundle, error) {
	id := fw.nextID.Add(1) - 1
	b := &Bundle{id: id, symbolic: symbolicName, fw: fw, activator: act, state: StateInstalled}
	if err := fw.registry.add(b); err != nil {
		return nil, err
	}
	b.publish(BundleEventInstalled)
	fw.logger.Info("bundle installed", "id", id, "symbolicName", symbolicName)
	return b, nil
}

// Context returns the framework bundle's context, valid once Init has run.
func (fw *Framework) Context() *BundleContext {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.sysCtx
}

// Bundles returns every installed bundle ordered by ascending id, including
// the framework bundle itself (id 0).
func (fw *Framework) Bundles() []*Bundle { return fw.registry.all() }

// GetBundle looks up an installed bundle by id.
func (fw *Framework) GetBundle(id int64) (*Bundle, error) { return fw.registry.get(id) }

// State returns the framework's current state.
func (fw *Framework) State() BundleState {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.state
}

// Init transitions INSTALLED|RESOLVED -> STARTING, constructing the
// framework bundle context. Idempotent on STARTING|ACTIVE; an error from
// any other state.
func (fw *Framework) Init() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.state&(StateStarting|StateActive) != 0 {
		return nil
	}
	if fw.state&(StateInstalled|StateResolved) == 0 {
		return IllegalState(StateInstalled, fw.state)
	}
	fw.state = StateStarting
	fw.sysCtx = newBundleContext(fw.frameworkBundle, fw)
	fw.frameworkBundle.state = StateStarting
	return nil
}

// Start completes initialization and transitions the framework to ACTIVE,
// firing STARTING and STARTED framework events.
func (fw *Framework) Start(opts StartOptions) error {
	if err := fw.Init(); err != nil {
		return err
	}

	fw.publishFrameworkEvent(FrameworkStarting, nil)

	fw.mu.Lock()
	fw.state = StateActive
	fw.frameworkBundle.state = StateActive
	fw.mu.Unlock()

	fw.publishFrameworkEvent(FrameworkStarted, nil)
	fw.logger.Info("framework started")
	return nil
}

// Stop funnels into Shutdown(restart=false).
func (fw *Framework) Stop(opts StopOptions) error { return fw.shutdown(false) }

// Update funnels into Shutdown(restart=true): the framework stops, then
// restarts to whatever state it was in before (ACTIVE replays Start,
// otherwise Init).
func (fw *Framework) Update() error { return fw.shutdown(true) }

func (fw *Framework) shutdown(restart bool) error {
	fw.mu.Lock()
	state := fw.state
	fw.mu.Unlock()

	if state&(StateInstalled|StateResolved) != 0 {
		fw.setStopEvent(FrameworkEvent{Type: FrameworkStopped, Time: timeNow()})
		return nil
	}
	if state&(StateStopping|StateUninstalled) != 0 {
		return nil
	}

	wasActive := state&StateActive != 0

	fw.shutdownMu.Lock()
	if fw.shutdownRunning {
		fw.shutdownMu.Unlock()
		return nil
	}
	fw.shutdownRunning = true
	fw.shutdownDone = make(chan struct{})
	fw.shutdownMu.Unlock()

	go fw.shutdown0(restart, wasActive)
	return nil
}

// shutdown0 is the dedicated shutdown goroutine body (spec.md §4.7).
func (fw *Framework) shutdown0(restart, wasActive bool) {
	defer func() {
		fw.shutdownMu.Lock()
		fw.shutdownRunning = false
		close(fw.shutdownDone)
		fw.shutdownMu.Unlock()
	}()

	fw.waitFrameworkBundleIdle()

	fw.resolver.Lock()
	fw.stopSlot = stopEventSlot{}
	fw.resolver.Unlock()

	fw.mu.Lock()
	fw.state = StateStopping
	fw.frameworkBundle.state = StateStopping
	fw.mu.Unlock()
	fw.publishFrameworkEvent(FrameworkStoppingEvt, nil)

	var restartBundles []*Bundle
	if wasActive {
		restartBundles = fw.registry.inStates(StateActive)
		fw.StopAllBundles()
	}
	fw.pool.drainZombies()

	fw.uninit0()
	fw.mu.Lock()
	fw.uninit1()
	fw.mu.Unlock()

	evtType := FrameworkStopped
	if restart {
		evtType = FrameworkStoppedUpdate
	}
	fw.setStopEvent(FrameworkEvent{Type: evtType, Time: timeNow()})

	fw.mu.Lock()
	fw.state = StateResolved
	fw.frameworkBundle.state = StateResolved
	fw.mu.Unlock()

	if restart {
		if wasActive {
			_ = fw.Start(0)
			for _, b := range restartBundles {
				if b.Resolve() == nil {
					_ = b.Start(0)
				}
			}
		} else {
			_ = fw.Init()
		}
	}
}

// waitFrameworkBundleIdle blocks until the framework bundle's own operation
// tag is IDLE. Init and Start do not set that tag, so this does not wait
// for an Init or Start still in flight on bundle 0.
func (fw *Framework) waitFrameworkBundleIdle() {
	for {
		fw.mu.Lock()
		idle := fw.op == opIdle
		fw.mu.Unlock()
		if idle {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// uninit0 is the out-of-lock phase of core-context teardown: bundle stop
// activators may still have made last-gasp service lookups by this point,
// so nothing framework-global is torn down here.
func (fw *Framework) uninit0() {}

// uninit1 is the under-lock phase: finalize the framework bundle context.
// Caller must hold fw.mu.
func (fw *Framework) uninit1() {
	if fw.sysCtx != nil {
		fw.sysCtx.invalidate()
		fw.sysCtx = nil
	}
}

// StopAllBundles snapshots active bundles, stops each in reverse id order
// (reporting, never aborting, on a per-bundle failure), then forces every
// non-framework bundle to INSTALLED while holding the resolver lock.
func (fw *Framework) StopAllBundles() {
	active := fw.registry.inStates(StateActive | StateStarting)
	for i, j := 0, len(active)-1; i < j; i, j = i+1, j-1 {
		active[i], active[j] = active[j], active[i]
	}

	for _, b := range active {
		if b.id == 0 {
			continue
		}
		if err := b.Stop(StopTransient); err != nil {
			fw.publishFrameworkEvent(FrameworkError, err)
		}
	}

	fw.resolver.Lock()
	for _, b := range fw.registry.all() {
		if b.id == 0 {
			continue
		}
		b.forceInstalled()
	}
	fw.resolver.Unlock()

	fw.logger.Info("stop-all-bundles complete", "count", len(active))
}

// WaitForStop blocks until the stop-event slot is set or timeout elapses
// (0 means unbounded), then joins the shutdown goroutine if one is or was
// running. Calling it again after a shutdown has completed returns the
// same recorded event immediately — the slot is set at most once per
// cycle.
func (fw *Framework) WaitForStop(timeout time.Duration) FrameworkEvent {
	fw.resolver.Lock()
	for !fw.stopSlot.valid {
		woken := fw.resolver.WaitTimeout(timeout)
		if !woken {
			fw.resolver.Unlock()
			fw.joinShutdown()
			return FrameworkEvent{Type: FrameworkWaitTimedOut, Time: timeNow()}
		}
	}
	evt := fw.stopSlot.event
	fw.resolver.Unlock()

	fw.joinShutdown()
	return evt
}

// Shutdown is an alias for Stop(0), matching the controller vocabulary
// used by embedders that don't distinguish graceful stop from shutdown.
func (fw *Framework) Shutdown() error { return fw.Stop(0) }

func (fw *Framework) joinShutdown() {
	fw.shutdownMu.Lock()
	done := fw.shutdownDone
	fw.shutdownMu.Unlock()
	if done != nil {
		<-done
	}
}

func (fw *Framework) setStopEvent(evt FrameworkEvent) {
	fw.resolver.Lock()
	if !fw.stopSlot.valid {
		fw.stopSlot = stopEventSlot{valid: true, event: evt}
	}
	fw.resolver.Broadcast()
	fw.resolver.Unlock()

	fw.listeners.framework.Publish(evt)
}

// EmitHeartbeat publishes a FrameworkHeartbeat event through the listener
// hub, for the diagnostics package's periodic liveness signal. Safe to call
// regardless of state; callers that only want it while ACTIVE check
// State() first.
func (fw *Framework) EmitHeartbeat() {
	fw.publishFrameworkEvent(FrameworkHeartbeat, nil)
}

func (fw *Framework) publishFrameworkEvent(t FrameworkEventType, cause error) {
	fw.listeners.framework.Publish(FrameworkEvent{Type: t, Cause: cause, Time: timeNow()})
}

func timeNow() time.Time { return time.Now() }

// OnBundleEvent subscribes directly to bundle events, bypassing the need
// for a valid bundle context. Intended for framework-level collaborators
// (event bridges, diagnostics) rather than bundle activators, which should
// use BundleContext.AddBundleListener instead.
func (fw *Framework) OnBundleEvent(id string, priority int, fn func(BundleEvent) error) func() {
	return fw.listeners.bundles.Subscribe(subscriptionAlways(id, priority, fn))
}

// OnServiceEvent is the framework-level equivalent of
// BundleContext.AddServiceListener.
func (fw *Framework) OnServiceEvent(id string, priority int, filter Filter, fn func(ServiceEvent) error) func() {
	accepts := func(e ServiceEvent) bool {
		if filter == nil {
			return true
		}
		return filter.Matches(e.Reference.properties())
	}
	return fw.listeners.services.Subscribe(subscription(id, priority, accepts, fn))
}

// OnFrameworkEvent is the framework-level equivalent of
// BundleContext.AddFrameworkListener.
func (fw *Framework) OnFrameworkEvent(id string, priority int, fn func(FrameworkEvent) error) func() {
	return fw.listeners.framework.Subscribe(subscriptionAlways(id, priority, fn))
}
