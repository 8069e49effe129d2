package ubundle

// Activator is the user-supplied pair of start/stop entry points for a
// bundle. Neither method is owed any threading guarantee beyond "called on
// a goroutine not holding any framework lock" — the bundle worker invokes
// them on its own dedicated goroutine.
type Activator interface {
	// Start is invoked exactly once, while the bundle is STARTING, before it
	// moves to ACTIVE. A non-nil return aborts the transition: the bundle
	// worker calls StartFailed cleanup and the bundle lands in RESOLVED.
	Start(ctx *BundleContext) error

	// Stop is invoked exactly once, while the bundle is STOPPING, before it
	// moves to RESOLVED. The bundle lands in RESOLVED whether or not Stop
	// returns an error; an error is returned, wrapped as ErrActivatorFailed,
	// from Bundle.Stop (and Framework.StopAllBundles reports it as a
	// FrameworkError event).
	Stop(ctx *BundleContext) error
}

// ActivatorFunc adapts a pair of functions to the Activator interface, for
// tests and small embedding programs that don't want to declare a type.
type ActivatorFunc struct {
	StartFunc func(ctx *BundleContext) error
	StopFunc  func(ctx *BundleContext) error
}

func (f ActivatorFunc) Start(ctx *BundleContext) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx)
}

func (f ActivatorFunc) Stop(ctx *BundleContext) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}
