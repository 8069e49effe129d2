package ubundle

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// ServiceRegistration is the framework's bookkeeping record for a published
// service (spec §3). The interface map is logically immutable once
// published; properties and the dependent sets are mutated under the
// registration's own mutex, never under the bundle or resolver lock.
type ServiceRegistration struct {
	ID      string
	Owner   *Bundle
	Iface   reflect.Type
	service any

	mu            sync.Mutex
	props         map[string]any
	available     bool
	unregistering bool
	users         map[int64]struct{} // dependent bundle ids, normal use
	prototypes    map[int64]struct{} // dependent bundle ids, prototype instances
}

func newServiceRegistration(owner *Bundle, iface reflect.Type, service any, props map[string]any) *ServiceRegistration {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	p := make(map[string]any, len(props))
	for k, v := range props {
		p[k] = v
	}
	return &ServiceRegistration{
		ID:         id.String(),
		Owner:      owner,
		Iface:      iface,
		service:    service,
		props:      p,
		available:  true,
		users:      make(map[int64]struct{}),
		prototypes: make(map[int64]struct{}),
	}
}

// Service returns the published implementation.
func (r *ServiceRegistration) Service() any {
	return r.service
}

// Available reports whether the registration has not yet begun
// unregistering.
func (r *ServiceRegistration) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

func (r *ServiceRegistration) properties() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]any, len(r.props))
	for k, v := range r.props {
		out[k] = v
	}
	return out
}

// SetProperty mutates the property bag under the registration's lock.
func (r *ServiceRegistration) SetProperty(key string, value any) {
	r.mu.Lock()
	r.props[key] = value
	r.mu.Unlock()
}

func (r *ServiceRegistration) addUser(bundleID int64)      { r.mu.Lock(); r.users[bundleID] = struct{}{}; r.mu.Unlock() }
func (r *ServiceRegistration) removeUser(bundleID int64)   { r.mu.Lock(); delete(r.users, bundleID); r.mu.Unlock() }
func (r *ServiceRegistration) addPrototype(bundleID int64) { r.mu.Lock(); r.prototypes[bundleID] = struct{}{}; r.mu.Unlock() }

func (r *ServiceRegistration) beginUnregister() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unregistering {
		return false
	}
	r.unregistering = true
	r.available = false
	return true
}
