// Package eventbridge converts the core's native BundleEvent, ServiceEvent
// and FrameworkEvent value objects into CloudEvents, so external
// observers (a shell, a custom driver, a metrics exporter) can consume a
// standardized wire-ish event shape without the core itself depending on
// any wire protocol (spec.md §6: "Wire protocol: None").
package eventbridge

import (
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer is notified of bridged events. OnEvent should return quickly;
// NotifyObservers delivers to every matching observer on the calling
// goroutine.
type Observer interface {
	OnEvent(ctx context.Context, event cloudevents.Event) error
	ObserverID() string
}

// Subject is the event-emitting side an Observer registers with.
type Subject interface {
	RegisterObserver(observer Observer, eventTypes ...string) error
	UnregisterObserver(observer Observer) error
	NotifyObservers(ctx context.Context, event cloudevents.Event) error
	GetObservers() []ObserverInfo
}

// ObserverInfo describes a registered observer for debugging/admin UIs.
type ObserverInfo struct {
	ID           string    `json:"id"`
	EventTypes   []string  `json:"eventTypes"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// CloudEvent type vocabulary for the bundle domain, reverse-domain notation
// per the CloudEvents spec.
const (
	EventTypeBundleInstalled   = "io.ubundle.bundle.installed"
	EventTypeBundleResolved    = "io.ubundle.bundle.resolved"
	EventTypeBundleStarting    = "io.ubundle.bundle.starting"
	EventTypeBundleStarted     = "io.ubundle.bundle.started"
	EventTypeBundleStopping    = "io.ubundle.bundle.stopping"
	EventTypeBundleStopped     = "io.ubundle.bundle.stopped"
	EventTypeBundleUninstalled = "io.ubundle.bundle.uninstalled"

	EventTypeServiceRegistered   = "io.ubundle.service.registered"
	EventTypeServiceUnregistering = "io.ubundle.service.unregistering"

	EventTypeFrameworkStarted  = "io.ubundle.framework.started"
	EventTypeFrameworkStopped  = "io.ubundle.framework.stopped"
	EventTypeFrameworkError    = "io.ubundle.framework.error"
)

type registration struct {
	observer     Observer
	eventTypes   map[string]struct{} // empty means "all"
	registeredAt time.Time
}

// Bridge is the Subject implementation: a registry of observers plus the
// source string stamped onto every CloudEvent it emits.
type Bridge struct {
	source string

	mu   sync.RWMutex
	subs map[string]*registration
}

// NewBridge creates a Bridge that stamps source (e.g. "ubundle/framework")
// onto every emitted CloudEvent.
func NewBridge(source string) *Bridge {
	return &Bridge{source: source, subs: make(map[string]*registration)}
}

func (b *Bridge) RegisterObserver(observer Observer, eventTypes ...string) error {
	types := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = struct{}{}
	}
	b.mu.Lock()
	b.subs[observer.ObserverID()] = &registration{observer: observer, eventTypes: types, registeredAt: time.Now()}
	b.mu.Unlock()
	return nil
}

func (b *Bridge) UnregisterObserver(observer Observer) error {
	b.mu.Lock()
	delete(b.subs, observer.ObserverID())
	b.mu.Unlock()
	return nil
}

// NotifyObservers delivers event to every observer whose filter accepts its
// type. An individual observer's error does not stop delivery to the rest.
func (b *Bridge) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	b.mu.RLock()
	regs := make([]*registration, 0, len(b.subs))
	for _, r := range b.subs {
		regs = append(regs, r)
	}
	b.mu.RUnlock()

	for _, r := range regs {
		if len(r.eventTypes) > 0 {
			if _, ok := r.eventTypes[event.Type()]; !ok {
				continue
			}
		}
		_ = r.observer.OnEvent(ctx, event)
	}
	return nil
}

func (b *Bridge) GetObservers() []ObserverInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]ObserverInfo, 0, len(b.subs))
	for id, r := range b.subs {
		types := make([]string, 0, len(r.eventTypes))
		for t := range r.eventTypes {
			types = append(types, t)
		}
		out = append(out, ObserverInfo{ID: id, EventTypes: types, RegisteredAt: r.registeredAt})
	}
	return out
}

// FunctionalObserver adapts a plain function to Observer, for tests and
// small embedding programs that don't want to declare a type.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

func (f *FunctionalObserver) ObserverID() string { return f.id }
