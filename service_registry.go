package ubundle

import (
	"reflect"

	"github.com/ubundle/ubundle/registry"
)

// serviceRegistry tracks every published ServiceRegistration by id and
// indexes them by interface type for resolution. Registering and
// unregistering publish ServiceEvents through the listener hub.
type serviceRegistry struct {
	table     *registry.Table[string, *ServiceRegistration]
	hub       *ListenerHub
	byIface   *registry.Table[reflect.Type, []*ServiceRegistration]
}

func newServiceRegistry(hub *ListenerHub) *serviceRegistry {
	return &serviceRegistry{
		table:   registry.NewTable[string, *ServiceRegistration](),
		hub:     hub,
		byIface: registry.NewTable[reflect.Type, []*ServiceRegistration](),
	}
}

func (s *serviceRegistry) register(owner *Bundle, iface reflect.Type, service any, props map[string]any) (*ServiceRegistration, error) {
	reg := newServiceRegistration(owner, iface, service, props)
	_ = s.table.Put(reg.ID, reg, false)

	existing, _ := s.byIface.Get(iface)
	_ = s.byIface.Put(iface, append(existing, reg), true)

	s.hub.services.Publish(ServiceEvent{Type: ServiceRegistered, Reference: reg})
	return reg, nil
}

func (s *serviceRegistry) unregister(reg *ServiceRegistration) error {
	if !reg.beginUnregister() {
		return nil // already unregistering; idempotent
	}
	s.hub.services.Publish(ServiceEvent{Type: ServiceUnregistering, Reference: reg})

	s.table.Delete(reg.ID)
	existing, err := s.byIface.Get(reg.Iface)
	if err == nil {
		filtered := existing[:0:0]
		for _, r := range existing {
			if r.ID != reg.ID {
				filtered = append(filtered, r)
			}
		}
		_ = s.byIface.Put(reg.Iface, filtered, true)
	}
	return nil
}

func (s *serviceRegistry) resolveByInterface(iface reflect.Type) (*ServiceRegistration, error) {
	regs, err := s.byIface.Get(iface)
	if err != nil || len(regs) == 0 {
		return nil, NotFound(iface)
	}
	for _, r := range regs {
		if r.Available() {
			return r, nil
		}
	}
	return nil, NotFound(iface)
}

func (s *serviceRegistry) resolveAllByInterface(iface reflect.Type) []*ServiceRegistration {
	regs, err := s.byIface.Get(iface)
	if err != nil {
		return nil
	}
	out := make([]*ServiceRegistration, 0, len(regs))
	for _, r := range regs {
		if r.Available() {
			out = append(out, r)
		}
	}
	return out
}

// unregisterAllOwnedBy removes every service still registered by b — called
// when a bundle stops or is uninstalled.
func (s *serviceRegistry) unregisterAllOwnedBy(b *Bundle) {
	for _, reg := range s.table.Snapshot(nil) {
		if reg.Owner == b {
			_ = s.unregister(reg)
		}
	}
}
