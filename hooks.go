package ffetch

import (
	"net/http"
	"time"
)

// RetryContext describes one finished attempt while a retry decision or
// delay is being made.
type RetryContext struct {
	// Attempt is the 1-based number of the attempt that just finished.
	Attempt int
	// Request is the call's request.
	Request *http.Request
	// Response is the attempt's response; nil when the attempt errored.
	Response *http.Response
	// Err is the attempt's classified error; nil when a response arrived.
	Err error
}

// RetryPredicate decides whether a finished attempt should be retried.
type RetryPredicate func(*RetryContext) bool

// DelayFunc computes the wait before the next attempt.
type DelayFunc func(*RetryContext) time.Duration

// DedupeKeyFunc derives the coalescing key for a request. Returning false
// opts the request out of deduplication.
type DedupeKeyFunc func(*http.Request) (string, bool)

// Hooks are observation and shaping points around a call's lifecycle.
// Observation hooks (Before, After, the On* callbacks) receive live values
// and must not mutate them; outcomes pass through unchanged no matter what
// a hook does. The two Transform hooks may replace what they receive.
//
// Hooks run synchronously on the calling goroutine.
type Hooks struct {
	// Before runs after TransformRequest, immediately before the first
	// attempt.
	Before func(*http.Request)

	// After runs on success with the final (possibly transformed) response.
	After func(*http.Request, *http.Response)

	// OnError runs once per failed call with the final typed error.
	OnError func(*http.Request, error)

	// OnRetry runs once per scheduled retry, before the wait.
	OnRetry func(*RetryContext)

	// OnTimeout runs when the call fails because its time budget elapsed,
	// before OnError.
	OnTimeout func(*http.Request, error)

	// OnAbort runs when the call fails because a cancellation signal fired,
	// before OnError.
	OnAbort func(*http.Request, error)

	// OnCircuitOpen runs when a call's outcome trips the breaker open,
	// with the triggering request, and again for every call rejected while
	// the breaker stays open, with the rejected request.
	OnCircuitOpen func(*http.Request)

	// OnCircuitClose runs when a successful call closes the breaker again,
	// with the request that triggered the transition.
	OnCircuitClose func(*http.Request)

	// OnComplete runs exactly once per call, after every other hook, with
	// the final outcome.
	OnComplete func(*http.Request, *http.Response, error)

	// TransformRequest may replace the outgoing request before any attempt.
	// Returning an error fails the call with that error. Returning a
	// request with a different context links that context into the call's
	// cancellation signals.
	TransformRequest func(*http.Request) (*http.Request, error)

	// TransformResponse may replace the response after a successful call.
	// Returning an error fails the call with that error.
	TransformResponse func(*http.Response) (*http.Response, error)
}
