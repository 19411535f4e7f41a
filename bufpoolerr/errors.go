// Package bufpoolerr collects the buffer pool's error taxonomy: sentinel
// errors naming each failure kind, and a panic-based assertion helper
// that wraps them for conditions that are always a programming error.
package bufpoolerr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFrame is raised when a frame id passed to the replacer
	// falls outside [0, N).
	ErrInvalidFrame = errors.New("bufpool: invalid frame id")

	// ErrNonEvictable is raised when Remove is called on a tracked
	// frame that is not currently evictable.
	ErrNonEvictable = errors.New("bufpool: frame is not evictable")

	// ErrInvalidGuardUse is raised when an observable operation is
	// attempted on a moved-from or already-dropped page guard.
	ErrInvalidGuardUse = errors.New("bufpool: use of an inert page guard")

	// ErrDiskFailure marks a disk request that completed with failure.
	ErrDiskFailure = errors.New("bufpool: disk request failed")
)

// assertf panics with a wrapped sentinel when cond is false. It exists
// for invariants that can never legitimately fail at runtime — an
// out-of-range frame id, use of a dropped or moved-from guard — where the
// only sane response is to abort rather than propagate an error a
// caller might try to handle and continue past.
func assertf(cond bool, sentinel error, format string, args ...any) {
	if cond {
		return
	}
	panic(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

// AssertValidFrame panics with ErrInvalidFrame if frameID is outside
// [0, n).
func AssertValidFrame(frameID, n int, op string) {
	assertf(frameID >= 0 && frameID < n, ErrInvalidFrame, "%s: frame %d, pool size %d", op, frameID, n)
}

// AssertGuardValid panics with ErrInvalidGuardUse if valid is false.
func AssertGuardValid(valid bool, op string) {
	assertf(valid, ErrInvalidGuardUse, "%s on inert guard", op)
}
