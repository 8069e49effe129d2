// Package diagnostics schedules a periodic framework heartbeat: the one
// background concern the core's own data flow doesn't already cover with a
// timer of its own (everything else in spec.md is request-driven).
package diagnostics

import (
	"github.com/robfig/cron/v3"

	"github.com/ubundle/ubundle"
)

// Heartbeat publishes a synthetic FrameworkHeartbeat event through the
// listener hub on a cron schedule, but only while the framework is ACTIVE —
// a cheap liveness signal for shell/admin front ends to poll without
// touching any framework lock.
type Heartbeat struct {
	fw    *ubundle.Framework
	cron  *cron.Cron
	entry cron.EntryID
}

// NewHeartbeat schedules fw's heartbeat on spec, in 6-field cron syntax with
// a leading seconds field (e.g. "*/30 * * * * *"), since the scheduler is
// built with cron.WithSeconds().
func NewHeartbeat(fw *ubundle.Framework, spec string) (*Heartbeat, error) {
	c := cron.New(cron.WithSeconds())
	h := &Heartbeat{fw: fw, cron: c}

	id, err := c.AddFunc(spec, h.tick)
	if err != nil {
		return nil, err
	}
	h.entry = id
	return h, nil
}

// Start begins the cron scheduler in its own goroutine.
func (h *Heartbeat) Start() { h.cron.Start() }

// Stop halts the scheduler, waiting for any in-flight tick to finish.
func (h *Heartbeat) Stop() { <-h.cron.Stop().Done() }

func (h *Heartbeat) tick() {
	if h.fw.State() != ubundle.StateActive {
		return
	}
	h.fw.EmitHeartbeat()
}
