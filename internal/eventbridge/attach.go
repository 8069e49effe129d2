package eventbridge

import (
	"context"

	"github.com/ubundle/ubundle"
)

// bundleEventTypes maps the core's BundleEventType enum to its CloudEvent
// type string.
var bundleEventTypes = map[ubundle.BundleEventType]string{
	ubundle.BundleEventInstalled:   EventTypeBundleInstalled,
	ubundle.BundleEventResolved:    EventTypeBundleResolved,
	ubundle.BundleEventStarting:    EventTypeBundleStarting,
	ubundle.BundleEventStarted:     EventTypeBundleStarted,
	ubundle.BundleEventStopping:    EventTypeBundleStopping,
	ubundle.BundleEventStopped:     EventTypeBundleStopped,
	ubundle.BundleEventUninstalled: EventTypeBundleUninstalled,
}

var serviceEventTypes = map[ubundle.ServiceEventType]string{
	ubundle.ServiceRegistered:    EventTypeServiceRegistered,
	ubundle.ServiceUnregistering: EventTypeServiceUnregistering,
}

// Attach subscribes b to every event channel of fw, translating each native
// event into a CloudEvent and fanning it out through NotifyObservers.
// Attach uses the framework-level subscription methods (not a bundle
// context), since the bridge is a framework collaborator, not a bundle.
// The returned detach func unsubscribes all three channels.
func Attach(b *Bridge, fw *ubundle.Framework) (detach func()) {
	ctx := context.Background()

	detachBundle := fw.OnBundleEvent("eventbridge", 0, func(e ubundle.BundleEvent) error {
		t, ok := bundleEventTypes[e.Type]
		if !ok {
			return nil
		}
		data := map[string]any{"bundleId": e.BundleID, "symbolicName": e.Symbolic}
		return b.NotifyObservers(ctx, newCloudEvent(t, b.source, data))
	})

	detachService := fw.OnServiceEvent("eventbridge", 0, nil, func(e ubundle.ServiceEvent) error {
		t, ok := serviceEventTypes[e.Type]
		if !ok {
			return nil
		}
		data := map[string]any{"registrationId": e.Reference.ID}
		return b.NotifyObservers(ctx, newCloudEvent(t, b.source, data))
	})

	detachFramework := fw.OnFrameworkEvent("eventbridge", 0, func(e ubundle.FrameworkEvent) error {
		var t string
		switch e.Type {
		case ubundle.FrameworkStarted:
			t = EventTypeFrameworkStarted
		case ubundle.FrameworkStopped, ubundle.FrameworkStoppedUpdate:
			t = EventTypeFrameworkStopped
		case ubundle.FrameworkError:
			t = EventTypeFrameworkError
		default:
			return nil
		}
		var data map[string]any
		if e.Cause != nil {
			data = map[string]any{"cause": e.Cause.Error()}
		}
		return b.NotifyObservers(ctx, newCloudEvent(t, b.source, data))
	})

	return func() {
		detachBundle()
		detachService()
		detachFramework()
	}
}
