// ABOUTME: Error taxonomy for the holder store
// ABOUTME: Maps store and driver errors onto DuplicateName, NotFound, Cancelled, Persistence, InvalidArgument

package waypoints

import (
	"context"
	"errors"
	"fmt"

	"github.com/wordmann/waypoints/internal/store"
)

var (
	// ErrDuplicateName means the name is already used in the holder, ignoring case.
	ErrDuplicateName = store.ErrDuplicateName
	// ErrNotFound means the targeted folder, waypoint or holder no longer exists.
	ErrNotFound = store.ErrNotFound
	// ErrCancelled means a pre-event observer vetoed the operation. It is
	// distinct from context.Canceled, which reports a caller abort.
	ErrCancelled = errors.New("cancelled by observer")
	// ErrPersistence wraps backing-store failures that have no other class.
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidArgument is returned before any I/O for bad input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrClosed is returned by a Manager after Close.
	ErrClosed = errors.New("manager closed")
)

// VetoError carries the reason given by the observer that cancelled an operation.
type VetoError struct {
	Op     string
	Reason string
}

func (e *VetoError) Error() string {
	if e.Reason == "" {
		return e.Op + ": " + ErrCancelled.Error()
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrCancelled, e.Reason)
}

// Is makes errors.Is(err, ErrCancelled) hold.
func (e *VetoError) Is(target error) bool {
	return target == ErrCancelled
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// classify turns a store error into one of the package sentinels.
// ctx is the operation's context: a driver error seen after the caller
// cancelled is reported as the cancellation.
func classify(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDuplicateName), errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, store.ErrHolderNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case errors.Is(err, store.ErrCrossHolder), errors.Is(err, store.ErrInvalidPolicy):
		return fmt.Errorf("%w: %s: %w", ErrInvalidArgument, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w (%v)", op, ctx.Err(), err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
	}
}
