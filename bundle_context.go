package ubundle

import "reflect"

// BundleContext is the handle through which a running bundle talks to the
// framework: installing other bundles, registering services, and
// subscribing to events. It is valid only while its owning bundle is in
// STARTING, ACTIVE or STOPPING; once the bundle leaves those states the
// context is invalidated and InstallBundle, GetBundle, RegisterService and
// GetServiceReference return ErrIllegalState. The Add*Listener methods do
// not check validity.
type BundleContext struct {
	bundle *Bundle
	fw     *Framework
	valid  bool
}

func newBundleContext(b *Bundle, fw *Framework) *BundleContext {
	return &BundleContext{bundle: b, fw: fw, valid: true}
}

func (c *BundleContext) invalidate() { c.valid = false }

func (c *BundleContext) checkValid() error {
	if !c.valid {
		return ErrIllegalState
	}
	return nil
}

// Bundle returns the bundle owning this context.
func (c *BundleContext) Bundle() *Bundle { return c.bundle }

// InstallBundle installs a new bundle with the given symbolic name and
// activator, in the INSTALLED state. Bundle ids are assigned monotonically
// by the framework; id 0 is reserved for the framework bundle.
func (c *BundleContext) InstallBundle(symbolicName string, act Activator) (*Bundle, error) {
	if err := c.checkValid(); err != nil {
		return nil, err
	}
	return c.fw.installBundle(symbolicName, act)
}

// GetBundle looks up an installed bundle by id.
func (c *BundleContext) GetBundle(id int64) (*Bundle, error) {
	if err := c.checkValid(); err != nil {
		return nil, err
	}
	return c.fw.registry.get(id)
}

// RegisterService publishes service under the given interface type,
// attributing ownership to this context's bundle.
func (c *BundleContext) RegisterService(iface reflect.Type, service any, props map[string]any) (*ServiceRegistration, error) {
	if err := c.checkValid(); err != nil {
		return nil, err
	}
	return c.fw.services.register(c.bundle, iface, service, props)
}

// GetServiceReference resolves the first published service implementing T.
func GetServiceReference[T any](c *BundleContext) (T, *ServiceRegistration, error) {
	var zero T
	if err := c.checkValid(); err != nil {
		return zero, nil, err
	}
	iface := reflect.TypeOf((*T)(nil)).Elem()
	reg, err := c.fw.services.resolveByInterface(iface)
	if err != nil {
		return zero, nil, err
	}
	svc, ok := reg.service.(T)
	if !ok {
		return zero, nil, NotFound(iface)
	}
	return svc, reg, nil
}

// AddBundleListener subscribes fn to bundle events, returning an
// unsubscribe function.
func (c *BundleContext) AddBundleListener(id string, priority int, fn func(BundleEvent) error) func() {
	return c.fw.listeners.bundles.Subscribe(subscriptionAlways(id, priority, fn))
}

// AddServiceListener subscribes fn to service events matching filter (nil
// filter matches everything).
func (c *BundleContext) AddServiceListener(id string, priority int, filter Filter, fn func(ServiceEvent) error) func() {
	accepts := func(e ServiceEvent) bool {
		if filter == nil {
			return true
		}
		return filter.Matches(e.Reference.properties())
	}
	return c.fw.listeners.services.Subscribe(subscription(id, priority, accepts, fn))
}

// AddFrameworkListener subscribes fn to framework events.
func (c *BundleContext) AddFrameworkListener(id string, priority int, fn func(FrameworkEvent) error) func() {
	return c.fw.listeners.framework.Subscribe(subscriptionAlways(id, priority, fn))
}
