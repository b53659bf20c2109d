// Package signal merges the cancellation inputs of a single call into one
// effective context and attributes which input fired first.
package signal

import (
	"context"
	"errors"
	"time"
)

// ErrElapsed is the cancellation cause recorded when a call's time budget
// runs out. Cancellations carrying any other cause originate from the
// caller's context or from a context attached by a request transform.
var ErrElapsed = errors.New("time budget elapsed")

// Compose derives the effective context for one call from up to three
// inputs: the caller's context, an optional extra context attached by a
// request transform, and an optional whole-call time budget. Cancelling any
// input cancels the result. The budget records ErrElapsed as the
// cancellation cause so the outcome can be attributed with Elapsed.
//
// The returned stop func releases timers and the link to the extra context;
// call it once the call settles.
func Compose(caller, extra context.Context, budget time.Duration) (context.Context, func()) {
	if caller == nil {
		caller = context.Background()
	}
	ctx := caller
	stops := make([]func(), 0, 2)

	if extra != nil && extra != caller {
		linked, cancel := context.WithCancelCause(ctx)
		ctx = linked
		if extra.Err() != nil {
			cancel(context.Cause(extra))
			stops = append(stops, func() { cancel(context.Canceled) })
		} else {
			unlink := context.AfterFunc(extra, func() {
				cancel(context.Cause(extra))
			})
			stops = append(stops, func() {
				unlink()
				cancel(context.Canceled)
			})
		}
	}

	if budget > 0 {
		timed, cancel := context.WithTimeoutCause(ctx, budget, ErrElapsed)
		ctx = timed
		stops = append(stops, cancel)
	}

	return ctx, func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}
}

// Elapsed reports whether ctx was cancelled by a time budget installed via
// Compose, as opposed to one of the other inputs.
func Elapsed(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrElapsed)
}
