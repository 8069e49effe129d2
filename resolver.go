package ubundle

// resolverMonitor is the C3 component: a single framework-scoped mutex plus
// condition variable, the rendezvous between a caller of Bundle.Start/Stop
// (or a framework-wide "wait for state X" loop) and the worker goroutine
// executing the operation. Workers never hold it while running user code;
// they acquire it only briefly to broadcast completion.
type resolverMonitor struct {
	*condVar
}

func newResolverMonitor() *resolverMonitor {
	return &resolverMonitor{condVar: newCondVar()}
}
