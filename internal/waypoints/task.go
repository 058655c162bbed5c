// ABOUTME: Task is the asynchronous result type returned by every holder store operation
// ABOUTME: Cancellation is best-effort and only takes effect before the commit point

package waypoints

import (
	"context"
	"errors"
	"fmt"
)

// ErrPending is returned by Result while the task is still running.
var ErrPending = errors.New("task still running")

// Unit is the result type of operations that only report success or failure.
type Unit = struct{}

// Task is a running operation. It starts as soon as it is created.
type Task[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  T
	err    error
}

// Go starts fn in its own goroutine with a context derived from ctx.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(t.done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		t.value, t.err = fn(ctx)
	}()

	return t
}

// failed returns a task that has already finished with err.
func failed[T any](err error) *Task[T] {
	t := &Task[T]{
		done:   make(chan struct{}),
		cancel: func() {},
		err:    err,
	}
	close(t.done)
	return t
}

// Done is closed when the task has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the task to stop. A task that already committed its write
// still reports success.
func (t *Task[T]) Cancel() {
	t.cancel()
}

// Result returns the outcome without blocking, or ErrPending.
func (t *Task[T]) Result() (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	default:
		var zero T
		return zero, ErrPending
	}
}

// Wait blocks until the task finishes.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	return t.value, t.err
}

// Await blocks until the task finishes or ctx is done. When ctx ends first
// the task is cancelled and ctx's error is returned; the task may still
// complete if it was past its commit point.
func (t *Task[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		t.Cancel()
		var zero T
		return zero, ctx.Err()
	}
}
