// Package fsm holds helpers shared by looplab/fsm state machines.
package fsm

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// WrapEvent adapts an error-returning action to an fsm.Callback; a non-nil
// error is stored on the event and surfaces from FSM.Event.
func WrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// Arg returns the i-th event argument when it has type T.
func Arg[T any](event *fsm.Event, i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(event.Args) {
		return zero, false
	}
	v, ok := event.Args[i].(T)
	return v, ok
}

// IsRejected reports whether err means the event does not apply to the
// current state, as opposed to a callback failure.
func IsRejected(err error) bool {
	var (
		invalid fsm.InvalidEventError
		unknown fsm.UnknownEventError
	)
	return errors.As(err, &invalid) || errors.As(err, &unknown)
}
