// Package bdd hosts the cucumber/godog suite covering the scenario seeds
// that benefit most from a readable Gherkin description: happy start/stop,
// start timeout and a framework-wide update. Races and abort semantics
// (scenario seeds S3, S4, S6) are covered by table/property tests instead,
// where precise goroutine synchronization is easier to express than in
// Gherkin steps.
package bdd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/ubundle/ubundle"
)

var (
	errNoStartError  = errors.New("expected starting the bundle to have failed, but it did not")
	errWrongState    = errors.New("bundle is not in the expected state")
	errWrongEvents   = errors.New("listener did not observe the expected events")
	errWrongStopType = errors.New("stop event is not of the expected type")
)

type bddTestLogger struct{}

func (bddTestLogger) Info(string, ...any)  {}
func (bddTestLogger) Error(string, ...any) {}
func (bddTestLogger) Warn(string, ...any)  {}
func (bddTestLogger) Debug(string, ...any) {}

type sleepyActivator struct {
	startDelay time.Duration
	stopDelay  time.Duration
}

func (a sleepyActivator) Start(ctx *ubundle.BundleContext) error {
	time.Sleep(a.startDelay)
	return nil
}

func (a sleepyActivator) Stop(ctx *ubundle.BundleContext) error {
	time.Sleep(a.stopDelay)
	return nil
}

type bundleTestContext struct {
	fw          *ubundle.Framework
	bundles     map[string]*ubundle.Bundle
	events      map[string][]string
	startErr    error
	lastStopEvt ubundle.FrameworkEvent
}

func (c *bundleTestContext) reset() {
	c.bundles = make(map[string]*ubundle.Bundle)
	c.events = make(map[string][]string)
	c.startErr = nil
}

func (c *bundleTestContext) frameworkWithTimeout(millis int) error {
	c.fw = ubundle.NewFramework(nil, bddTestLogger{}, time.Duration(millis)*time.Millisecond)
	return c.fw.Start(0)
}

func (c *bundleTestContext) frameworkWithSecondsTimeout(secs int) error {
	return c.frameworkWithTimeout(secs * 1000)
}

func (c *bundleTestContext) installSleepyBundle(name string, startMS, stopMS int) error {
	b, err := c.fw.Context().InstallBundle(name, sleepyActivator{
		startDelay: time.Duration(startMS) * time.Millisecond,
		stopDelay:  time.Duration(stopMS) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	if err := b.Resolve(); err != nil {
		return err
	}
	c.watch(name, b)
	return nil
}

func (c *bundleTestContext) installInstantBundles(names []string) error {
	for _, name := range names {
		if err := c.installSleepyBundle(name, 0, 0); err != nil {
			return err
		}
	}
	return nil
}

func (c *bundleTestContext) watch(name string, b *ubundle.Bundle) {
	c.bundles[name] = b
	c.fw.OnBundleEvent("bdd-"+name, 0, func(e ubundle.BundleEvent) error {
		if e.BundleID == b.ID() {
			c.events[name] = append(c.events[name], e.Type.String())
		}
		return nil
	})
}

func (c *bundleTestContext) startBundle(name string) error {
	err := c.bundles[name].Start(0)
	c.startErr = err
	return nil // the scenario asserts on startErr explicitly, not via step failure
}

func (c *bundleTestContext) stopBundle(name string) error {
	return c.bundles[name].Stop(0)
}

func (c *bundleTestContext) bundleShouldBeInState(name, want string) error {
	got := c.bundles[name].State().String()
	if got != want {
		return fmt.Errorf("%w: %s wanted %s, got %s", errWrongState, name, want, got)
	}
	return nil
}

func (c *bundleTestContext) listenerShouldHaveObserved(name, wantCSV string) error {
	want := strings.Split(strings.ReplaceAll(wantCSV, " ", ""), ",")
	got := c.events[name]
	if len(got) != len(want) {
		return errWrongEvents
	}
	for i := range want {
		if got[i] != want[i] {
			return errWrongEvents
		}
	}
	return nil
}

func (c *bundleTestContext) startingShouldFailWith(name, substr string) error {
	if c.startErr == nil || !strings.Contains(c.startErr.Error(), substr) {
		return errNoStartError
	}
	return nil
}

func (c *bundleTestContext) startEverything(names []string) error {
	for _, name := range names {
		if err := c.bundles[name].Start(0); err != nil {
			return err
		}
	}
	return nil
}

func (c *bundleTestContext) updateFramework() error {
	done := make(chan ubundle.FrameworkEvent, 1)
	c.fw.OnFrameworkEvent("bdd-update-wait", 0, func(e ubundle.FrameworkEvent) error {
		if e.Type == ubundle.FrameworkStopped || e.Type == ubundle.FrameworkStoppedUpdate {
			select {
			case done <- e:
			default:
			}
		}
		return nil
	})
	if err := c.fw.Update(); err != nil {
		return err
	}
	select {
	case evt := <-done:
		c.lastStopEvt = evt
	case <-time.After(5 * time.Second):
		return errWrongStopType
	}
	// give the post-restart Start() a moment to land every bundle back in ACTIVE
	time.Sleep(50 * time.Millisecond)
	return nil
}

func (c *bundleTestContext) stopEventShouldBe(want string) error {
	if c.lastStopEvt.Type.String() != want {
		return errWrongStopType
	}
	return nil
}

func (c *bundleTestContext) allShouldBeInState(names []string, want string) error {
	for _, name := range names {
		if err := c.bundleShouldBeInState(name, want); err != nil {
			return err
		}
	}
	return nil
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &bundleTestContext{}

	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	sc.Step(`^a framework with a (\d+) second start/stop timeout$`, func(secs string) error {
		n, _ := strconv.Atoi(secs)
		return tc.frameworkWithSecondsTimeout(n)
	})
	sc.Step(`^a framework with a (\d+) millisecond start/stop timeout$`, func(ms string) error {
		n, _ := strconv.Atoi(ms)
		return tc.frameworkWithTimeout(n)
	})
	sc.Step(`^a bundle "([^"]+)" whose activator sleeps (\d+) ms on start and (\d+) ms on stop$`,
		func(name, startMS, stopMS string) error {
			s, _ := strconv.Atoi(startMS)
			p, _ := strconv.Atoi(stopMS)
			return tc.installSleepyBundle(name, s, p)
		})
	sc.Step(`^a bundle "([^"]+)" whose activator sleeps (\d+) ms on start$`, func(name, startMS string) error {
		s, _ := strconv.Atoi(startMS)
		return tc.installSleepyBundle(name, s, 0)
	})
	sc.Step(`^bundles "([^"]+)", "([^"]+)", "([^"]+)" with instant activators$`, func(a, b, c2 string) error {
		return tc.installInstantBundles([]string{a, b, c2})
	})
	sc.Step(`^the framework and all three bundles are started$`, func() error {
		names := make([]string, 0, len(tc.bundles))
		for name := range tc.bundles {
			names = append(names, name)
		}
		return tc.startEverything(names)
	})
	sc.Step(`^I start bundle "([^"]+)"$`, tc.startBundle)
	sc.Step(`^I stop bundle "([^"]+)"$`, tc.stopBundle)
	sc.Step(`^I update the framework$`, tc.updateFramework)
	sc.Step(`^bundle "([^"]+)" should be in state "([^"]+)"$`, tc.bundleShouldBeInState)
	sc.Step(`^the bundle listener should have observed events "([^"]+)" for "([^"]+)"$`,
		func(events, name string) error { return tc.listenerShouldHaveObserved(name, events) })
	sc.Step(`^starting "([^"]+)" should fail with an error containing "([^"]+)"$`, tc.startingShouldFailWith)
	sc.Step(`^the stop event should be "([^"]+)"$`, tc.stopEventShouldBe)
	sc.Step(`^bundles "([^"]+)", "([^"]+)", "([^"]+)" should all be in state "([^"]+)"$`,
		func(a, b, c2, state string) error { return tc.allShouldBeInState([]string{a, b, c2}, state) })
}

func TestBundleLifecycle(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/bundle_lifecycle.feature"},
			TestingT: t,
			Strict:   true,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
