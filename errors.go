package ubundle

import (
	"errors"
	"fmt"
)

// Sentinel error kinds surfaced by the core (spec §7). Callers compare with
// errors.Is; the wrapped detail (bundle id, operation, cause) is carried in
// the message since the core never throws across a worker boundary — the
// worker captures, the caller translates.
var (
	// ErrActivatorFailed wraps a panic or error returned by an activator's
	// Start or Stop callback.
	ErrActivatorFailed = errors.New("activator failed")

	// ErrTimeout indicates a start/stop call was abandoned after
	// startStopTimeout elapsed with the activator callback still running.
	ErrTimeout = errors.New("time-out during bundle operation")

	// ErrUninstalledDuring indicates a bundle reached UNINSTALLED while a
	// start/stop call on it was still pending.
	ErrUninstalledDuring = errors.New("bundle uninstalled during operation")

	// ErrIllegalState indicates an operation was attempted from a bundle or
	// framework state that does not permit it.
	ErrIllegalState = errors.New("illegal state")

	// ErrDuplicate indicates a bundle id or service name collision.
	ErrDuplicate = errors.New("duplicate")

	// ErrNotFound indicates a lookup by id or name found nothing.
	ErrNotFound = errors.New("not found")
)

// ActivatorFailed wraps cause as an ErrActivatorFailed for bundle bundleID's op.
func ActivatorFailed(bundleID int64, op string, cause error) error {
	return fmt.Errorf("bundle #%d %s failed: %w: %v", bundleID, op, ErrActivatorFailed, cause)
}

// Timeout reports a start/stop timeout for bundle bundleID's op ("start" or
// "stop"), matching the original implementation's message so embedding code
// that greps log output for it keeps working.
func Timeout(op string, bundleID int64) error {
	return fmt.Errorf("bundle #%d %s failed with reason: Time-out during bundle %s(): %w",
		bundleID, op, op, ErrTimeout)
}

// UninstalledDuring reports a concurrent uninstall for bundle bundleID's op.
func UninstalledDuring(op string, bundleID int64) error {
	return fmt.Errorf("bundle #%d %s failed with reason: Bundle uninstalled during %s(): %w",
		bundleID, op, op, ErrUninstalledDuring)
}

// IllegalState reports that a bundle/framework was found in actual when
// expected was required for the attempted transition.
func IllegalState(expected, actual fmt.Stringer) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrIllegalState, expected, actual)
}

// Duplicate reports a collision on id (bundle id or service name).
func Duplicate(id any) error {
	return fmt.Errorf("%w: %v", ErrDuplicate, id)
}

// NotFound reports a failed lookup by id or name.
func NotFound(id any) error {
	return fmt.Errorf("%w: %v", ErrNotFound, id)
}
