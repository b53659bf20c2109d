package ffetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fetch-kit/ffetch/internal/backoff"
)

// DefaultShouldRetry retries connectivity failures and responses with
// status 429 or >= 500.
func DefaultShouldRetry(rc *RetryContext) bool {
	if rc.Err != nil {
		var networkErr *NetworkError
		return errors.As(rc.Err, &networkErr)
	}
	if rc.Response != nil {
		return rc.Response.StatusCode >= http.StatusInternalServerError ||
			rc.Response.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// runAttempts drives the attempt loop under the effective context: send,
// classify, decide, wait, repeat. Errors it returns are typed except for
// rate limiter misconfiguration surfaced by Reserve.
func (c *Client) runAttempts(caller, effective context.Context, req *http.Request, s *settings, requestID string) (*http.Response, error) {
	maxAttempts := s.retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	endpoint := endpointFromRequest(req)

	for attempt := 1; ; attempt++ {
		if err := effective.Err(); err != nil {
			return nil, classifyError(err, caller, effective)
		}

		if s.limiter != nil {
			if err := c.holdForLimiter(caller, effective, s); err != nil {
				return nil, err
			}
		}

		attemptReq, err := attemptRequest(req, effective, attempt)
		if err != nil {
			return nil, &RetryLimitError{Message: "request body replay failed", Cause: err}
		}

		resp, rtErr := s.transport.RoundTrip(attemptReq)
		if rtErr == nil {
			rc := &RetryContext{Attempt: attempt, Request: req, Response: resp}
			if attempt < maxAttempts && s.shouldRetry(rc) && replayable(req) {
				drainBody(resp)
				if err := c.scheduleRetry(caller, effective, s, rc, endpoint, requestID); err != nil {
					return nil, err
				}
				continue
			}
			return resp, nil
		}

		classified := classifyError(rtErr, caller, effective)
		if isFinal(classified) {
			return nil, classified
		}

		rc := &RetryContext{Attempt: attempt, Request: req, Err: classified}
		if attempt < maxAttempts && s.shouldRetry(rc) && replayable(req) {
			if err := c.scheduleRetry(caller, effective, s, rc, endpoint, requestID); err != nil {
				return nil, err
			}
			continue
		}

		if isClassified(classified) {
			return nil, classified
		}
		return nil, newRetryLimitError(classified)
	}
}

// holdForLimiter reserves a rate limiter token and waits out its delay
// under the effective context.
func (c *Client) holdForLimiter(caller, effective context.Context, s *settings) error {
	res := s.limiter.Reserve()
	if !res.OK() {
		return errors.New("rate limiter cannot grant a token at its burst size")
	}
	if delay := res.Delay(); delay > 0 {
		if err := s.clock.Sleep(effective, delay); err != nil {
			res.Cancel()
			return classifyError(err, caller, effective)
		}
	}
	s.metrics.RecordRateLimiterTokens(s.limiter.Tokens())
	return nil
}

// scheduleRetry fires the retry hook, records metrics and logs, and waits
// out the retry delay under the effective context.
func (c *Client) scheduleRetry(caller, effective context.Context, s *settings, rc *RetryContext, endpoint, requestID string) error {
	delay := s.retryWait(rc)

	s.metrics.RecordRetry(rc.Request.Method, endpoint, rc.Attempt)
	if s.debugRetries() {
		s.logger.Debug("retry scheduled",
			"requestID", requestID, "attempt", rc.Attempt, "delay", delay.String())
	}
	if s.hooks.OnRetry != nil {
		s.hooks.OnRetry(rc)
	}

	if err := s.clock.Sleep(effective, delay); err != nil {
		return classifyError(err, caller, effective)
	}
	return nil
}

// retryWait resolves the wait before the next attempt. A Retry-After
// directive on the latest response overrides whichever delay policy is
// configured.
func (s *settings) retryWait(rc *RetryContext) time.Duration {
	if rc.Response != nil {
		if d, ok := parseRetryAfter(rc.Response.Header.Get("Retry-After"), s.clock.Now()); ok {
			return d
		}
	}
	if s.delayFunc != nil {
		return s.delayFunc(rc)
	}
	var strategy backoff.Strategy
	if s.retryDelay > 0 {
		strategy = backoff.Constant(s.retryDelay)
	} else {
		strategy = backoff.Exponential{
			Base:   s.backoffBase,
			Max:    s.backoffMax,
			Jitter: s.backoffJitter,
		}
	}
	return strategy.Delay(rc.Attempt)
}

// parseRetryAfter interprets a Retry-After header value as delta-seconds or
// an HTTP-date, capped at one hour. Dates in the past yield a zero delay.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return capRetryAfter(time.Duration(seconds) * time.Second), true
	}

	if at, err := http.ParseTime(value); err == nil {
		delay := at.Sub(now)
		if delay < 0 {
			delay = 0
		}
		return capRetryAfter(delay), true
	}

	return 0, false
}

func capRetryAfter(d time.Duration) time.Duration {
	if d > time.Hour {
		return time.Hour
	}
	return d
}

// replayable reports whether req can be sent more than once: it has no
// body, or net/http recorded a GetBody rewinder when it was built.
func replayable(req *http.Request) bool {
	return req.Body == nil || req.GetBody != nil
}

// attemptRequest clones req for one attempt under the effective context,
// rewinding the body for attempts past the first.
func attemptRequest(req *http.Request, ctx context.Context, attempt int) (*http.Request, error) {
	clone := req.Clone(ctx)
	if attempt > 1 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

// drainBody discards and closes a response body that will not be returned,
// keeping the underlying connection reusable.
func drainBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func endpointFromRequest(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	return req.URL.Host + req.URL.Path
}
