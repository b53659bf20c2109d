package ffetch

import (
	"errors"
	"net/http"
	"sync"
	"time"
)

// CircuitState is the stored state of a CircuitBreaker.
type CircuitState int

const (
	// CircuitClosed admits every call.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset deadline passes, then
	// admits trial calls until one succeeds.
	CircuitOpen
)

// String implements fmt.Stringer.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitConfig holds circuit breaker configuration. Zero fields take the
// package defaults.
type CircuitConfig struct {
	// FailureThreshold is the consecutive call-failure count that opens the
	// circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit rejects calls after opening
	// before a trial call may pass through.
	ResetTimeout time.Duration
}

// CircuitBreaker is a two-state breaker fed one outcome per call. It opens
// after FailureThreshold consecutive failures and closes again only when a
// call admitted after the reset deadline succeeds; a failed trial pushes
// the deadline forward instead. Safe for concurrent use and for sharing
// across clients.
type CircuitBreaker struct {
	config CircuitConfig
	clock  Clock

	mu       sync.Mutex
	state    CircuitState
	failures int
	retryAt  time.Time
	openedBy *http.Request
	closedBy *http.Request
}

// NewCircuitBreaker creates a circuit breaker, applying defaults to zero
// config fields.
func NewCircuitBreaker(config CircuitConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultResetTimeout
	}
	return &CircuitBreaker{
		config: config,
		clock:  realClock{},
	}
}

// allow admits a call or rejects it with a CircuitOpenError. Rejected calls
// are never counted as failures.
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.clock.Now().Before(cb.retryAt) {
		return &CircuitOpenError{Message: "circuit breaker is open"}
	}
	return nil
}

// record feeds one settled call into the breaker and reports the transition
// it caused, if any. A success zeroes the failure counter and closes an
// open circuit; a failure past the threshold opens it; a failed trial while
// open pushes the reset deadline without re-opening.
func (cb *CircuitBreaker) record(req *http.Request, failure bool) (opened, closed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !failure {
		cb.failures = 0
		if cb.state == CircuitOpen {
			cb.state = CircuitClosed
			cb.closedBy = req
			return false, true
		}
		return false, false
	}

	cb.failures++
	if cb.state == CircuitOpen {
		cb.retryAt = cb.clock.Now().Add(cb.config.ResetTimeout)
		return false, false
	}
	if cb.failures >= cb.config.FailureThreshold {
		cb.state = CircuitOpen
		cb.retryAt = cb.clock.Now().Add(cb.config.ResetTimeout)
		cb.openedBy = req
		return true, false
	}
	return false, false
}

// Open reports whether the breaker currently rejects calls: stored state
// open and the reset deadline not yet passed.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state == CircuitOpen && cb.clock.Now().Before(cb.retryAt)
}

// State returns the stored state. An open breaker stays open until a
// successful call closes it, even while the passed reset deadline admits
// trial calls.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive call-level failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// callFailure reports whether a settled call counts against the breaker:
// any error except the breaker's own rejection, or a final response with
// status 429 or >= 500.
func callFailure(resp *http.Response, err error) bool {
	if err != nil {
		var circuitErr *CircuitOpenError
		return !errors.As(err, &circuitErr)
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode >= http.StatusInternalServerError ||
		resp.StatusCode == http.StatusTooManyRequests
}
