package ffetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/fetch-kit/ffetch/internal/signal"
)

func TestErrorMessages(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"timeout with cause", &TimeoutError{Message: "request timed out", Cause: cause}, "request timed out: connection refused"},
		{"timeout without cause", &TimeoutError{Message: "request timed out"}, "request timed out"},
		{"abort without cause", &AbortError{Message: "aborted by user"}, "aborted by user"},
		{"abort with cause", &AbortError{Message: "request aborted", Cause: cause}, "request aborted: connection refused"},
		{"circuit open", &CircuitOpenError{Message: "circuit breaker is open"}, "circuit breaker is open"},
		{"network", &NetworkError{Message: "network error", Cause: cause}, "network error: connection refused"},
		{"retry limit", newRetryLimitError(cause), "retry limit reached: connection refused"},
		{"http", &HTTPError{StatusCode: 404, Status: "404 Not Found"}, "http error: 404 Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.err.Error(), tt.want)
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")

	assert.Assert(t, errors.Is(&TimeoutError{Message: "m", Cause: cause}, cause))
	assert.Assert(t, errors.Is(&AbortError{Message: "m", Cause: cause}, cause))
	assert.Assert(t, errors.Is(&NetworkError{Message: "m", Cause: cause}, cause))
	assert.Assert(t, errors.Is(newRetryLimitError(cause), cause))
}

func TestNewHTTPError(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Status:     "503 Service Unavailable",
	}

	err := newHTTPError(resp)
	assert.Equal(t, err.StatusCode, http.StatusServiceUnavailable)
	assert.Equal(t, err.Status, "503 Service Unavailable")
	assert.Equal(t, err.Response, resp)
}

// elapsedContext builds a context whose cancellation cause marks an
// exhausted time budget, without waiting on a real timer.
func elapsedContext() context.Context {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(signal.ErrElapsed)
	return ctx
}

func abortedContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestClassifyErrorNil(t *testing.T) {
	assert.Assert(t, classifyError(nil, context.Background(), context.Background()) == nil)
}

func TestClassifyErrorPassthrough(t *testing.T) {
	typed := &NetworkError{Message: "network error", Cause: io.EOF}

	// Already-typed errors pass through untouched even when a context has
	// fired in the meantime.
	got := classifyError(typed, abortedContext(), abortedContext())
	assert.Equal(t, got, error(typed))
}

func TestClassifyErrorCallerWins(t *testing.T) {
	got := classifyError(io.EOF, abortedContext(), elapsedContext())

	var abortErr *AbortError
	assert.Assert(t, errors.As(got, &abortErr))
	assert.Equal(t, abortErr.Message, "aborted by user")
	assert.Assert(t, abortErr.Cause == nil)
}

func TestClassifyErrorBudgetElapsed(t *testing.T) {
	got := classifyError(io.EOF, context.Background(), elapsedContext())

	var timeoutErr *TimeoutError
	assert.Assert(t, errors.As(got, &timeoutErr))
	assert.Equal(t, timeoutErr.Message, "request timed out")
	assert.Assert(t, errors.Is(got, io.EOF))
}

func TestClassifyErrorLinkedSignal(t *testing.T) {
	// An effective context cancelled for any reason other than the budget
	// reads as an abort.
	got := classifyError(io.EOF, context.Background(), abortedContext())

	var abortErr *AbortError
	assert.Assert(t, errors.As(got, &abortErr))
	assert.Equal(t, abortErr.Message, "request aborted")
	assert.Assert(t, errors.Is(got, io.EOF))
}

func TestClassifyErrorNetwork(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"eof", io.EOF},
		{"unexpected eof", io.ErrUnexpectedEOF},
		{"url error", &url.Error{Op: "Get", URL: "https://example.com", Err: errors.New("dial tcp: connection refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err, context.Background(), context.Background())

			var networkErr *NetworkError
			assert.Assert(t, errors.As(got, &networkErr))
			assert.Assert(t, errors.Is(got, tt.err))
		})
	}
}

func TestClassifyErrorUnknownStaysRaw(t *testing.T) {
	raw := errors.New("unexpected condition")

	got := classifyError(raw, context.Background(), context.Background())
	assert.Equal(t, got, raw)
}

func TestIsFinal(t *testing.T) {
	assert.Assert(t, isFinal(&TimeoutError{Message: "m"}))
	assert.Assert(t, isFinal(&AbortError{Message: "m"}))
	assert.Assert(t, isFinal(&CircuitOpenError{Message: "m"}))
	assert.Assert(t, !isFinal(&NetworkError{Message: "m"}))
	assert.Assert(t, !isFinal(newRetryLimitError(io.EOF)))
	assert.Assert(t, !isFinal(&HTTPError{StatusCode: 500}))
	assert.Assert(t, !isFinal(errors.New("raw")))
}

func TestErrorTypeLabel(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&TimeoutError{Message: "m"}, "timeout"},
		{&AbortError{Message: "m"}, "abort"},
		{&CircuitOpenError{Message: "m"}, "circuit_open"},
		{newRetryLimitError(io.EOF), "retry_limit"},
		{&NetworkError{Message: "m"}, "network"},
		{&HTTPError{StatusCode: 500, Status: "500 Internal Server Error"}, "http"},
		{errors.New("raw"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, errorTypeLabel(tt.err), tt.want)
		})
	}
}
