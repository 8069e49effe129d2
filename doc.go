// Package ubundle implements a single-process dynamic module (bundle)
// runtime in the style of OSGi: bundles are installed, resolved, started,
// stopped and uninstalled at runtime, and cooperate exclusively through
// typed services published in a shared registry. Consumers of a service are
// notified of its comings and goings through listeners rather than through
// direct references between bundles.
//
// The package is the lifecycle and coordination kernel: the per-bundle
// state machine and its worker (the goroutine that drives activator
// callbacks under a timeout and a cooperative abort flag), and the
// top-level Framework state machine that composes bundle shutdown, restart
// and wait-for-stop.
//
// Basic usage:
//
//	fw := ubundle.NewFramework(map[string]string{ubundle.LogLevelKey: "1"}, logger, 5*time.Second)
//	if err := fw.Init(); err != nil {
//		log.Fatal(err)
//	}
//	b, _ := fw.Context().InstallBundle("demo", myActivator)
//	_ = b.Resolve()
//	_ = fw.Start(0)
//	_ = b.Start(0)
package ubundle
