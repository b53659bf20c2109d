package ffetch

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/fetch-kit/ffetch/internal/signal"
)

// Client layers timeout enforcement, retries with backoff, circuit
// breaking, request deduplication and lifecycle hooks around a pluggable
// transport. It is safe for concurrent use; per-call options apply to a
// copy of the settings and never mutate the client.
type Client struct {
	base          *settings
	pending       *pendingRegistry
	dedupe        *dedupeTracker
	validationErr error
}

// New constructs a Client using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for
// errors.
func New(options ...Option) *Client {
	s := defaultSettings()
	for _, option := range options {
		option(s)
	}

	c := &Client{
		base:    s,
		pending: newPendingRegistry(),
		dedupe:  newDedupeTracker(),
	}
	c.validationErr = s.validate()
	return c
}

// IsValid reports whether the construction options validated cleanly.
func (c *Client) IsValid() bool { return c.validationErr == nil }

// ValidationError returns the configuration problems found at
// construction, nil when the configuration is sound.
func (c *Client) ValidationError() error { return c.validationErr }

// CircuitOpen reports whether the client's breaker currently rejects
// calls. It is false when no breaker is configured.
func (c *Client) CircuitOpen() bool {
	if c.base.breaker == nil {
		return false
	}
	return c.base.breaker.Open()
}

// PendingRequests snapshots the calls currently in flight, in no
// particular order.
func (c *Client) PendingRequests() []*PendingRequest {
	return c.pending.list()
}

// PendingCount returns the number of calls currently in flight.
func (c *Client) PendingCount() int {
	return c.pending.size()
}

// AbortAll cancels every in-flight call. Each settles with an AbortError
// and leaves the registry as it settles.
func (c *Client) AbortAll() {
	c.pending.abortAll()
}

// Get issues a GET request through the client.
func (c *Client) Get(ctx context.Context, url string, opts ...Option) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req, opts...)
}

// Post issues a POST request with the given content type. Bodies built
// from *bytes.Buffer, *bytes.Reader or *strings.Reader stay replayable for
// retries and deduplication; other readers are sent at most once.
func (c *Client) Post(ctx context.Context, url, contentType string, body io.Reader, opts ...Option) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req, opts...)
}

// Put issues a PUT request with the given content type.
func (c *Client) Put(ctx context.Context, url, contentType string, body io.Reader, opts ...Option) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Do(req, opts...)
}

// Delete issues a DELETE request through the client.
func (c *Client) Delete(ctx context.Context, url string, opts ...Option) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req, opts...)
}

// Do executes a prepared *http.Request with the client's settings plus any
// per-call overrides. Per-call options are validated up front and their
// errors returned before the call starts.
func (c *Client) Do(req *http.Request, opts ...Option) (*http.Response, error) {
	s := c.base
	if len(opts) > 0 {
		s = s.clone()
		for _, opt := range opts {
			opt(s)
		}
		if err := s.validate(); err != nil {
			return nil, err
		}
	}
	return c.run(req, s)
}

// run owns the call lifecycle: the registry entry, the hook pipeline and
// the outcome accounting.
func (c *Client) run(req *http.Request, s *settings) (resp *http.Response, err error) {
	if req == nil {
		return nil, errors.New("ffetch: nil request")
	}

	start := s.clock.Now()
	requestID := s.requestID()
	endpoint := endpointFromRequest(req)

	callerCtx, cancel := context.WithCancelCause(req.Context())
	req = req.WithContext(callerCtx)

	record := &PendingRequest{
		id:      requestID,
		request: req,
		started: start,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.pending.add(record)
	s.metrics.RecordRequestStart(req.Method, endpoint)
	if s.debugRequests() {
		s.logger.Debug("starting request",
			"requestID", requestID, "method", req.Method, "url", req.URL.String())
	}

	defer func() {
		record.settle(resp, err)
		c.pending.remove(requestID)
		cancel(context.Canceled)

		duration := s.clock.Now().Sub(start)
		s.metrics.RecordRequestEnd(req.Method, endpoint)
		s.metrics.RecordRequest(req.Method, endpoint, statusCodeOf(resp, err), duration)
		if err != nil {
			s.metrics.RecordError(errorTypeLabel(err), req.Method, endpoint)
		}
		if s.debugRequests() {
			if err != nil {
				s.logger.Debug("request failed",
					"requestID", requestID, "error", err.Error(), "duration", duration.String())
			} else {
				s.logger.Debug("request complete",
					"requestID", requestID, "status", resp.StatusCode, "duration", duration.String())
			}
		}
	}()

	return c.execute(callerCtx, req, s, requestID)
}

// execute runs the request shaping hooks, routes the call through
// deduplication when enabled, and applies the tail hooks to the outcome.
func (c *Client) execute(caller context.Context, req *http.Request, s *settings, requestID string) (*http.Response, error) {
	var linked context.Context
	if s.hooks.TransformRequest != nil {
		transformed, err := s.hooks.TransformRequest(req)
		if err != nil {
			return c.finish(req, s, nil, err)
		}
		if transformed != nil {
			if transformed.Context() != req.Context() {
				linked = transformed.Context()
			}
			req = transformed
		}
	}

	if s.hooks.Before != nil {
		s.hooks.Before(req)
	}

	if s.dedupe && s.dedupeKeyFunc != nil {
		if key, ok := s.dedupeKeyFunc(req); ok {
			resp, err := c.coalesce(caller, linked, req, s, key, requestID)
			return c.finish(req, s, resp, err)
		}
	}

	effective, stop := signal.Compose(caller, linked, s.timeout)
	defer stop()

	resp, err := c.callThroughBreaker(caller, effective, req, s, requestID)
	return c.finish(req, s, resp, err)
}

// coalesce funnels the call through the dedupe tracker: the first caller
// for a key owns the outbound request, later callers share its buffered
// outcome. Every sharer gets an independent response copy and still runs
// its own tail hooks.
func (c *Client) coalesce(caller, linked context.Context, req *http.Request, s *settings, key, requestID string) (*http.Response, error) {
	entry, owner := c.dedupe.acquire(key)
	endpoint := endpointFromRequest(req)

	effective, stop := signal.Compose(caller, linked, s.timeout)
	defer stop()

	if !owner {
		s.metrics.RecordDedupeHit(req.Method, endpoint)
		if s.debugDedupe() {
			s.logger.Debug("dedupe wait", "requestID", requestID, "key", key)
		}
		shared, err := entry.wait(effective)
		if err != nil {
			return nil, classifyError(err, caller, effective)
		}
		return shared.materialize(), nil
	}

	s.metrics.RecordDedupeMiss(req.Method, endpoint)
	if s.debugDedupe() {
		s.logger.Debug("dedupe own", "requestID", requestID, "key", key)
	}

	resp, err := c.callThroughBreaker(caller, effective, req, s, requestID)

	var shared *sharedResponse
	if err == nil && resp != nil {
		shared, err = newSharedResponse(resp)
		if err != nil {
			err = classifyError(err, caller, effective)
			shared = nil
		}
	}
	c.dedupe.settle(key, entry, shared, err)

	if err != nil {
		return nil, err
	}
	return shared.materialize(), nil
}

// callThroughBreaker applies the circuit gate around the whole attempt
// loop, recording exactly one outcome per call. Rejected calls never reach
// the loop and never count as failures.
func (c *Client) callThroughBreaker(caller, effective context.Context, req *http.Request, s *settings, requestID string) (*http.Response, error) {
	cb := s.breaker
	if cb == nil {
		return c.runAttempts(caller, effective, req, s, requestID)
	}

	if err := cb.allow(); err != nil {
		if s.debugCircuit() {
			s.logger.Debug("circuit rejected request", "requestID", requestID)
		}
		return nil, err
	}

	resp, err := c.runAttempts(caller, effective, req, s, requestID)

	opened, closed := cb.record(req, callFailure(resp, err))
	if opened {
		s.metrics.RecordCircuitState(true)
		if s.debugCircuit() {
			s.logger.Debug("circuit opened", "requestID", requestID, "failures", cb.Failures())
		}
		if s.hooks.OnCircuitOpen != nil {
			s.hooks.OnCircuitOpen(req)
		}
	}
	if closed {
		s.metrics.RecordCircuitState(false)
		if s.debugCircuit() {
			s.logger.Debug("circuit closed", "requestID", requestID)
		}
		if s.hooks.OnCircuitClose != nil {
			s.hooks.OnCircuitClose(req)
		}
	}
	return resp, err
}

// finish applies the success tail (response transform, After, optional
// status error) or the failure tail (specific hook, then OnError), and
// fires OnComplete exactly once with the final outcome.
func (c *Client) finish(req *http.Request, s *settings, resp *http.Response, err error) (*http.Response, error) {
	if err == nil && resp != nil && s.hooks.TransformResponse != nil {
		transformed, terr := s.hooks.TransformResponse(resp)
		if terr != nil {
			drainBody(resp)
			resp, err = nil, terr
		} else if transformed != nil {
			resp = transformed
		}
	}

	if err == nil && resp != nil {
		if s.hooks.After != nil {
			s.hooks.After(req, resp)
		}
		if s.errorOnStatus && resp.StatusCode >= 400 {
			resp, err = nil, newHTTPError(resp)
		}
	}

	if err != nil {
		var timeoutErr *TimeoutError
		var abortErr *AbortError
		var circuitErr *CircuitOpenError
		switch {
		case errors.As(err, &timeoutErr):
			if s.hooks.OnTimeout != nil {
				s.hooks.OnTimeout(req, err)
			}
		case errors.As(err, &abortErr):
			if s.hooks.OnAbort != nil {
				s.hooks.OnAbort(req, err)
			}
		case errors.As(err, &circuitErr):
			// Rejected calls never reach the breaker, so the transition
			// notification in callThroughBreaker cannot double-fire here.
			if s.hooks.OnCircuitOpen != nil {
				s.hooks.OnCircuitOpen(req)
			}
		}
		if s.hooks.OnError != nil {
			s.hooks.OnError(req, err)
		}
	}

	if s.hooks.OnComplete != nil {
		s.hooks.OnComplete(req, resp, err)
	}
	return resp, err
}

func statusCodeOf(resp *http.Response, err error) int {
	if resp != nil {
		return resp.StatusCode
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
