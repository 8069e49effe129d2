package ubundle

import "github.com/ubundle/ubundle/lifecycle"

// ListenerHub is the C5 component: three independent fan-out channels for
// bundle, service and framework events. Synchronous delivery is the
// default; a BundleChanged delivery that originates from the bundle
// worker's BUNDLE_EVENT opcode (see worker.go) goes through the same
// Publish call, so ordering with respect to the originating bundle's
// lifecycle is preserved by construction — one worker, one goroutine, one
// call at a time.
type ListenerHub struct {
	bundles   *lifecycle.Hub[BundleEvent]
	services  *lifecycle.Hub[ServiceEvent]
	framework *lifecycle.Hub[FrameworkEvent]
	logger    Logger
}

func newListenerHub(logger Logger) *ListenerHub {
	h := &ListenerHub{logger: logger}
	h.bundles = lifecycle.NewHub[BundleEvent](h.logBundleErr)
	h.services = lifecycle.NewHub[ServiceEvent](h.logServiceErr)
	h.framework = lifecycle.NewHub[FrameworkEvent](h.logFrameworkErr)
	return h
}

func (h *ListenerHub) logBundleErr(sub lifecycle.Subscription[BundleEvent], evt BundleEvent, err error) {
	h.logger.Error("bundle listener failed", "listener", sub.ID, "bundle", evt.BundleID, "event", evt.Type.String(), "error", err)
}

func (h *ListenerHub) logServiceErr(sub lifecycle.Subscription[ServiceEvent], evt ServiceEvent, err error) {
	h.logger.Error("service listener failed", "listener", sub.ID, "event", evt.Type.String(), "error", err)
}

func (h *ListenerHub) logFrameworkErr(sub lifecycle.Subscription[FrameworkEvent], evt FrameworkEvent, err error) {
	h.logger.Error("framework listener failed", "listener", sub.ID, "event", evt.Type.String(), "error", err)
}

func subscriptionAlways[E any](id string, priority int, fn func(E) error) lifecycle.Subscription[E] {
	return lifecycle.Subscription[E]{ID: id, Priority: priority, Accepts: nil, Deliver: fn}
}

func subscription[E any](id string, priority int, accepts func(E) bool, fn func(E) error) lifecycle.Subscription[E] {
	return lifecycle.Subscription[E]{ID: id, Priority: priority, Accepts: accepts, Deliver: fn}
}
