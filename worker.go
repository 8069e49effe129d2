package ubundle

import (
	"sync"
	"time"
)

// keepAlive is how long an idle worker waits for the next opcode before
// retiring itself into the pool's zombie list, matching the original
// design's KEEP_ALIVE.
const keepAlive = 1 * time.Second

// opcode is the operation a bundleWorker's run loop has been asked to
// perform, set by the caller under the worker's own mutex and consumed by
// the run loop after it wakes.
type opcode uint8

const (
	opCodeIdle opcode = iota
	opCodeBundleEvent
	opCodeStart
	opCodeStop
)

func (op opcode) name() string {
	switch op {
	case opCodeStart:
		return "start"
	case opCodeStop:
		return "stop"
	default:
		return "op"
	}
}

// resultSlot is a mutex-guarded single-assignment box for a start/stop
// outcome. It has no condition variable of its own: StartAndWait polls it
// each time the resolver monitor wakes it, rather than waiting on the slot
// directly, exactly as the original design does.
type resultSlot struct {
	mu  sync.Mutex
	set bool
	err error
}

func (s *resultSlot) Set(err error) {
	s.mu.Lock()
	s.set, s.err = true, err
	s.mu.Unlock()
}

func (s *resultSlot) TryGet() (error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err, s.set
}

func (s *resultSlot) Reset() {
	s.mu.Lock()
	s.set, s.err = false, nil
	s.mu.Unlock()
}

// bundleWorker is the C2 component: a dedicated goroutine that serializes
// every activator callback and bundle-event delivery for the bundles
// currently assigned to it, one at a time. Workers are pooled and reused
// across bundles (see worker_pool.go); a worker only ever executes one
// opcode at a time and never holds the framework's resolver monitor while
// running user code.
type bundleWorker struct {
	fw *Framework

	cv                     *condVar
	opcode                 opcode
	pendingBundle          *Bundle
	pendingEvent           BundleEvent
	executingBundleChanged bool
	quit                   bool

	result resultSlot
	done   chan struct{}
}

func newBundleWorker(fw *Framework) *bundleWorker {
	w := &bundleWorker{
		fw:   fw,
		cv:   newCondVar(),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// run is the worker's goroutine body. It idles on its own condition
// variable until given an opcode or until keepAlive elapses with nothing
// to do, at which point it asks the pool to retire it and exits.
func (w *bundleWorker) run() {
	defer close(w.done)

	for {
		w.cv.Lock()
		for w.opcode == opCodeIdle && !w.quit {
			woken := w.cv.WaitTimeout(keepAlive)
			if !woken && w.opcode == opCodeIdle && !w.quit {
				if w.fw.pool.retire(w) {
					w.quit = true
				}
			}
		}
		if w.quit {
			w.cv.Unlock()
			return
		}
		op := w.opcode
		bundle := w.pendingBundle
		event := w.pendingEvent
		w.cv.Unlock()

		var err error
		switch op {
		case opCodeStart:
			err = bundle.start0()
		case opCodeStop:
			err = bundle.stop1()
		case opCodeBundleEvent:
			w.setExecutingBundleChanged(true)
			w.fw.listeners.bundles.Publish(event)
			w.setExecutingBundleChanged(false)
		}

		w.cv.Lock()
		w.opcode = opCodeIdle
		w.pendingBundle = nil
		quitNow := w.quit
		w.cv.Unlock()

		if op == opCodeStart || op == opCodeStop {
			w.result.Set(err)
			w.fw.resolver.Lock()
			w.fw.resolver.Broadcast()
			w.fw.resolver.Unlock()
		}
		if quitNow {
			return
		}
	}
}

func (w *bundleWorker) setExecutingBundleChanged(v bool) {
	w.cv.Lock()
	w.executingBundleChanged = v
	w.cv.Unlock()
}

// IsExecutingBundleChanged reports whether this worker is currently
// delivering a bundle event, letting callers avoid a synchronous
// self-deadlock when firing an event from within a listener.
func (w *bundleWorker) IsExecutingBundleChanged() bool {
	w.cv.Lock()
	defer w.cv.Unlock()
	return w.executingBundleChanged
}

func (w *bundleWorker) dispatch(b *Bundle, op opcode, evt BundleEvent) {
	w.cv.Lock()
	w.pendingBundle = b
	w.pendingEvent = evt
	w.opcode = op
	w.cv.Broadcast()
	w.cv.Unlock()
}

// CallStart0 asks the worker to run bundle's activator Start on its
// goroutine.
func (w *bundleWorker) CallStart0(b *Bundle) { w.dispatch(b, opCodeStart, BundleEvent{}) }

// CallStop1 asks the worker to run bundle's activator Stop on its
// goroutine.
func (w *bundleWorker) CallStop1(b *Bundle) { w.dispatch(b, opCodeStop, BundleEvent{}) }

// BundleChanged asks the worker to deliver evt to the bundle listener hub
// on its goroutine, serializing it against any Start/Stop the worker is
// also handling.
func (w *bundleWorker) BundleChanged(evt BundleEvent) { w.dispatch(nil, opCodeBundleEvent, evt) }

// Quit abandons this worker: its goroutine, which may still be blocked
// inside a user activator callback, exits once it next checks the quit flag
// instead of being reused. startAndWait calls it after a timeout or a
// concurrent uninstall, having first disowned the worker into the pool's
// zombie list.
func (w *bundleWorker) Quit() {
	w.cv.Lock()
	w.quit = true
	w.cv.Broadcast()
	w.cv.Unlock()
}

func (w *bundleWorker) join() { <-w.done }

// startAndWait is the caller-side half of C2: it hands op off to w, then
// blocks on the framework's resolver monitor until either the worker
// reports a result, the bundle reaches UNINSTALLED out from under the
// call, or timeout elapses. The framework's resolver lock must already be
// held by the caller (bundle.go acquires it before calling this) since
// WaitTimeout both needs and releases that lock while parked.
func (w *bundleWorker) startAndWait(b *Bundle, op opcode, timeout time.Duration) error {
	w.result.Reset()

	b.mu.Lock()
	b.abortF = abortedNo
	b.mu.Unlock()

	switch op {
	case opCodeStart:
		w.CallStart0(b)
	case opCodeStop:
		w.CallStop1(b)
	}

	for {
		if b.State() == StateUninstalled {
			b.mu.Lock()
			b.abortF = abortedYes
			b.mu.Unlock()
			b.fw.pool.disown(w)
			w.Quit()
			return UninstalledDuring(op.name(), b.id)
		}
		if err, ok := w.result.TryGet(); ok {
			b.mu.Lock()
			b.abortF = abortedNone
			b.mu.Unlock()
			b.resetBundleThread()
			w.fw.pool.pushFrontLive(w)
			return err
		}
		woken := w.fw.resolver.WaitTimeout(timeout)
		if !woken {
			if err, ok := w.result.TryGet(); ok {
				b.resetBundleThread()
				w.fw.pool.pushFrontLive(w)
				return err
			}
			b.mu.Lock()
			b.abortF = abortedYes
			b.mu.Unlock()
			b.fw.pool.disown(w)
			w.Quit()
			switch op {
			case opCodeStart:
				b.startFailedCleanup()
			case opCodeStop:
				b.finishStop()
			}
			return Timeout(op.name(), b.id)
		}
	}
}
