package ubundle

import "sync"

// workerPool is the C6 component: two ordered collections protected by one
// mutex. live holds workers that may still be reused; zombies holds workers
// whose goroutine is exiting (or has been disowned after an abort) and
// which await joining. A worker migrates from live to zombies when its
// keep-alive idle timer fires, or is pushed straight into zombies when
// Quit is called on a worker whose user callback may still be running.
type workerPool struct {
	mu      sync.Mutex
	live    []*bundleWorker
	zombies []*bundleWorker
}

func newWorkerPool() *workerPool {
	return &workerPool{}
}

// pushFrontLive reinserts w at the head of live, so recent workers are
// reused first.
func (p *workerPool) pushFrontLive(w *bundleWorker) {
	p.mu.Lock()
	p.live = append([]*bundleWorker{w}, p.live...)
	p.mu.Unlock()
}

// popLive removes and returns the most recently used live worker, or nil if
// the pool is empty.
func (p *workerPool) popLive() *bundleWorker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.live) == 0 {
		return nil
	}
	w := p.live[0]
	p.live = p.live[1:]
	return w
}

// retire moves w from live to zombies if it is still present in live,
// returning true if it did. Called by a worker about to return from its
// run loop after an idle keep-alive timeout.
func (p *workerPool) retire(w *bundleWorker) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, lw := range p.live {
		if lw == w {
			p.live = append(p.live[:i], p.live[i+1:]...)
			p.zombies = append(p.zombies, w)
			return true
		}
	}
	return false
}

// disown appends w directly to zombies without requiring it be in live —
// used when StartAndWait abandons a call and Quit()s the worker while its
// user callback may still be on the stack.
func (p *workerPool) disown(w *bundleWorker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, lw := range p.live {
		if lw == w {
			p.live = append(p.live[:i], p.live[i+1:]...)
			break
		}
	}
	p.zombies = append(p.zombies, w)
}

// drainZombies joins every zombie's goroutine and clears the list. Used
// during framework shutdown.
func (p *workerPool) drainZombies() {
	p.mu.Lock()
	zombies := p.zombies
	p.zombies = nil
	p.mu.Unlock()

	for _, w := range zombies {
		w.join()
	}
}

func (p *workerPool) liveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

func (p *workerPool) contains(w *bundleWorker) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, lw := range p.live {
		if lw == w {
			return true
		}
	}
	return false
}
