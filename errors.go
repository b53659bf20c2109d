package ffetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/fetch-kit/ffetch/internal/signal"
)

// TimeoutError reports that a call's time budget elapsed before a response
// arrived. Cause carries the low-level cancellation error when one was
// observed.
type TimeoutError struct {
	Message string
	Cause   error
}

// Error implements error.
func (e *TimeoutError) Error() string { return formatError(e.Message, e.Cause) }

// Unwrap returns the underlying cause.
func (e *TimeoutError) Unwrap() error { return e.Cause }

// AbortError reports that a call was cancelled before it settled, either by
// the caller's context (including AbortAll) or by a context attached
// through a request transform. Cause is nil for caller-initiated aborts.
type AbortError struct {
	Message string
	Cause   error
}

// Error implements error.
func (e *AbortError) Error() string { return formatError(e.Message, e.Cause) }

// Unwrap returns the underlying cause.
func (e *AbortError) Unwrap() error { return e.Cause }

// CircuitOpenError reports that the circuit breaker rejected a call without
// sending it.
type CircuitOpenError struct {
	Message string
}

// Error implements error.
func (e *CircuitOpenError) Error() string { return e.Message }

// NetworkError reports a connectivity-level failure: DNS, dial, TLS, reset
// connections and other transport errors that never produced a response.
type NetworkError struct {
	Message string
	Cause   error
}

// Error implements error.
func (e *NetworkError) Error() string { return formatError(e.Message, e.Cause) }

// Unwrap returns the underlying cause.
func (e *NetworkError) Unwrap() error { return e.Cause }

// RetryLimitError reports that the attempt budget was exhausted by an error
// outside the typed set. Cause carries the last attempt's error.
type RetryLimitError struct {
	Message string
	Cause   error
}

// Error implements error.
func (e *RetryLimitError) Error() string { return formatError(e.Message, e.Cause) }

// Unwrap returns the underlying cause.
func (e *RetryLimitError) Unwrap() error { return e.Cause }

// HTTPError reports a response with status >= 400 when status errors are
// enabled via WithHTTPErrors. Response is the full response; its body is
// left unread for the caller.
type HTTPError struct {
	StatusCode int
	Status     string
	Response   *http.Response
}

// Error implements error.
func (e *HTTPError) Error() string { return fmt.Sprintf("http error: %s", e.Status) }

func newHTTPError(resp *http.Response) *HTTPError {
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Response:   resp,
	}
}

func newRetryLimitError(cause error) *RetryLimitError {
	return &RetryLimitError{Message: "retry limit reached", Cause: cause}
}

func formatError(msg string, cause error) string {
	if cause != nil {
		return fmt.Sprintf("%s: %v", msg, cause)
	}
	return msg
}

// classifyError maps a low-level attempt or wait failure onto the typed
// error set, using the call's contexts to attribute cancellations: the
// caller's own signal takes precedence, then the time budget, then any
// context linked by a request transform. Errors that already carry a type
// pass through unchanged; errors matching nothing stay untyped so the
// attempt loop can wrap them on exhaustion.
func classifyError(err error, caller, effective context.Context) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return err
	}
	if caller != nil && caller.Err() != nil {
		return &AbortError{Message: "aborted by user"}
	}
	if effective != nil && effective.Err() != nil {
		if signal.Elapsed(effective) {
			return &TimeoutError{Message: "request timed out", Cause: err}
		}
		return &AbortError{Message: "request aborted", Cause: err}
	}
	if isNetworkError(err) {
		return &NetworkError{Message: "network error", Cause: err}
	}
	return err
}

// isClassified reports whether err already is (or wraps) one of the typed
// errors.
func isClassified(err error) bool {
	var (
		timeoutErr  *TimeoutError
		abortErr    *AbortError
		circuitErr  *CircuitOpenError
		limitErr    *RetryLimitError
		networkErr  *NetworkError
		responseErr *HTTPError
	)
	return errors.As(err, &timeoutErr) ||
		errors.As(err, &abortErr) ||
		errors.As(err, &circuitErr) ||
		errors.As(err, &limitErr) ||
		errors.As(err, &networkErr) ||
		errors.As(err, &responseErr)
}

// isFinal reports whether err ends the call immediately: timeouts, aborts
// and breaker rejections are never retried.
func isFinal(err error) bool {
	var (
		timeoutErr *TimeoutError
		abortErr   *AbortError
		circuitErr *CircuitOpenError
	)
	return errors.As(err, &timeoutErr) ||
		errors.As(err, &abortErr) ||
		errors.As(err, &circuitErr)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// errorTypeLabel names an error class for metrics.
func errorTypeLabel(err error) string {
	var (
		timeoutErr  *TimeoutError
		abortErr    *AbortError
		circuitErr  *CircuitOpenError
		limitErr    *RetryLimitError
		networkErr  *NetworkError
		responseErr *HTTPError
	)
	switch {
	case errors.As(err, &timeoutErr):
		return "timeout"
	case errors.As(err, &abortErr):
		return "abort"
	case errors.As(err, &circuitErr):
		return "circuit_open"
	case errors.As(err, &limitErr):
		return "retry_limit"
	case errors.As(err, &networkErr):
		return "network"
	case errors.As(err, &responseErr):
		return "http"
	default:
		return "other"
	}
}
