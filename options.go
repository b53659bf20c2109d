package ffetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Defaults applied by New and NewCircuitBreaker.
const (
	// DefaultTimeout is the whole-call time budget.
	DefaultTimeout = 30 * time.Second
	// DefaultBackoffBase seeds the exponential retry delay.
	DefaultBackoffBase = 200 * time.Millisecond
	// DefaultBackoffJitter is the additive random spread on retry delays.
	DefaultBackoffJitter = 100 * time.Millisecond
	// DefaultBackoffMax caps the exponential retry delay.
	DefaultBackoffMax = 10 * time.Second
	// DefaultFailureThreshold opens the circuit after this many consecutive
	// call failures.
	DefaultFailureThreshold = 5
	// DefaultResetTimeout keeps an opened circuit rejecting calls this long.
	DefaultResetTimeout = 30 * time.Second
)

// settings is the effective configuration of one call. A client holds the
// construction-time settings; per-call options apply to a copy, so a call
// never mutates its client.
type settings struct {
	transport Transport
	timeout   time.Duration

	retries       int
	retryDelay    time.Duration
	delayFunc     DelayFunc
	shouldRetry   RetryPredicate
	backoffBase   time.Duration
	backoffMax    time.Duration
	backoffJitter time.Duration

	breaker *CircuitBreaker

	dedupe        bool
	dedupeKeyFunc DedupeKeyFunc

	errorOnStatus bool

	limiter *rate.Limiter

	hooks Hooks

	logger  Logger
	debug   *DebugConfig
	metrics *MetricsCollector
	clock   Clock
}

func defaultSettings() *settings {
	return &settings{
		transport:     TransportFunc(defaultHTTPClient.Do),
		timeout:       DefaultTimeout,
		shouldRetry:   DefaultShouldRetry,
		backoffBase:   DefaultBackoffBase,
		backoffMax:    DefaultBackoffMax,
		backoffJitter: DefaultBackoffJitter,
		dedupeKeyFunc: DefaultDedupeKey,
		debug:         DefaultDebugConfig(),
		clock:         realClock{},
	}
}

func (s *settings) clone() *settings {
	c := *s
	return &c
}

func (s *settings) requestID() string {
	if s.debug != nil && s.debug.RequestIDGen != nil {
		return s.debug.RequestIDGen()
	}
	return uuid.NewString()
}

func (s *settings) debugRequests() bool {
	return s.logger != nil && s.debug != nil && s.debug.Enabled && s.debug.LogRequests
}

func (s *settings) debugRetries() bool {
	return s.logger != nil && s.debug != nil && s.debug.Enabled && s.debug.LogRetries
}

func (s *settings) debugCircuit() bool {
	return s.logger != nil && s.debug != nil && s.debug.Enabled && s.debug.LogCircuit
}

func (s *settings) debugDedupe() bool {
	return s.logger != nil && s.debug != nil && s.debug.Enabled && s.debug.LogDedupe
}

// validate reports every configuration problem at once.
func (s *settings) validate() error {
	var errs []error

	if s.transport == nil {
		errs = append(errs, errors.New("transport must not be nil"))
	}
	if s.timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %v", s.timeout))
	}
	if s.retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", s.retries))
	}
	if s.retryDelay < 0 {
		errs = append(errs, fmt.Errorf("retryDelay must not be negative, got %v", s.retryDelay))
	}
	if s.backoffBase <= 0 {
		errs = append(errs, errors.New("backoffBase must be positive"))
	}
	if s.backoffMax < s.backoffBase {
		errs = append(errs, errors.New("backoffMax must be at least backoffBase"))
	}
	if s.backoffJitter < 0 {
		errs = append(errs, errors.New("backoffJitter must not be negative"))
	}
	if s.shouldRetry == nil {
		errs = append(errs, errors.New("retry predicate must not be nil"))
	}
	if s.dedupe && s.dedupeKeyFunc == nil {
		errs = append(errs, errors.New("dedupe key function must be set when deduplication is enabled"))
	}
	if s.limiter != nil && s.limiter.Burst() < 1 {
		errs = append(errs, errors.New("rate limiter burst must be at least 1"))
	}
	if s.debug != nil && s.debug.Enabled && s.debug.RequestIDGen == nil {
		errs = append(errs, errors.New("debug RequestIDGen must be set when debug is enabled"))
	}
	if s.clock == nil {
		errs = append(errs, errors.New("clock must not be nil"))
	}

	return errors.Join(errs...)
}

// Option configures a client at construction or overrides a single call at
// Do time.
type Option func(*settings)

// WithTransport sets the primitive used to send each attempt.
func WithTransport(t Transport) Option {
	return func(s *settings) {
		s.transport = t
	}
}

// WithHTTPClient sends attempts through client.Do. The client is used
// as-is: if it carries its own Timeout, that budget stacks with the
// per-call one.
func WithHTTPClient(client *http.Client) Option {
	return func(s *settings) {
		s.transport = TransportFunc(client.Do)
	}
}

// WithTimeout sets the whole-call time budget covering every attempt,
// backoff wait and coalesced wait. Zero disables the budget.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithRetries sets how many times a failed attempt may be retried. The
// call makes at most n+1 attempts.
func WithRetries(n int) Option {
	return func(s *settings) {
		s.retries = n
	}
}

// WithRetryDelay sets a fixed wait between attempts, replacing the
// exponential policy. A Retry-After directive still overrides it.
func WithRetryDelay(d time.Duration) Option {
	return func(s *settings) {
		s.retryDelay = d
	}
}

// WithRetryDelayFunc computes the wait between attempts, replacing the
// exponential policy. A Retry-After directive still overrides it.
func WithRetryDelayFunc(fn DelayFunc) Option {
	return func(s *settings) {
		s.delayFunc = fn
	}
}

// WithShouldRetry replaces DefaultShouldRetry as the retry decision.
// Timeouts, aborts and breaker rejections stay final regardless.
func WithShouldRetry(fn RetryPredicate) Option {
	return func(s *settings) {
		s.shouldRetry = fn
	}
}

// WithBackoffBase sets the base of the exponential retry delay.
func WithBackoffBase(d time.Duration) Option {
	return func(s *settings) {
		s.backoffBase = d
	}
}

// WithBackoffMax caps the exponential retry delay.
func WithBackoffMax(d time.Duration) Option {
	return func(s *settings) {
		s.backoffMax = d
	}
}

// WithBackoffJitter sets the additive random spread on retry delays.
func WithBackoffJitter(d time.Duration) Option {
	return func(s *settings) {
		s.backoffJitter = d
	}
}

// WithCircuit equips the scope with a new circuit breaker. At construction
// the breaker is shared by all of the client's calls; per call it guards
// just that call.
func WithCircuit(config CircuitConfig) Option {
	return func(s *settings) {
		cb := NewCircuitBreaker(config)
		if s.clock != nil {
			cb.clock = s.clock
		}
		s.breaker = cb
	}
}

// WithCircuitBreaker shares an existing breaker, letting several clients or
// call sites trip together.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(s *settings) {
		s.breaker = cb
	}
}

// WithDedupe coalesces concurrent identical requests onto one outbound
// call; every caller receives an independent copy of the outcome.
func WithDedupe() Option {
	return func(s *settings) {
		s.dedupe = true
	}
}

// WithoutDedupe disables deduplication for a call on a client that has it
// enabled.
func WithoutDedupe() Option {
	return func(s *settings) {
		s.dedupe = false
	}
}

// WithDedupeKeyFunc replaces DefaultDedupeKey as the coalescing key
// derivation.
func WithDedupeKeyFunc(fn DedupeKeyFunc) Option {
	return func(s *settings) {
		s.dedupeKeyFunc = fn
	}
}

// WithHTTPErrors turns responses with status >= 400 into *HTTPError
// failures after the After hook has run. The response stays readable via
// the error's Response field.
func WithHTTPErrors() Option {
	return func(s *settings) {
		s.errorOnStatus = true
	}
}

// WithoutHTTPErrors restores status-preserving behavior for a call on a
// client constructed with WithHTTPErrors.
func WithoutHTTPErrors() Option {
	return func(s *settings) {
		s.errorOnStatus = false
	}
}

// WithRateLimit spaces attempts with a token bucket admitting r events per
// second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(s *settings) {
		s.limiter = rate.NewLimiter(r, burst)
	}
}

// WithRateLimiter shares an existing token bucket across clients or call
// sites.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(s *settings) {
		s.limiter = l
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(s *settings) {
		s.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(s *settings) {
		s.metrics = collector
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithSimpleLogger enables debug logging through a console logger.
func WithSimpleLogger() Option {
	return func(s *settings) {
		s.logger = NewSimpleLogger()
		d := cloneDebugConfig(s.debug)
		d.Enabled = true
		s.debug = d
	}
}

// WithDebug enables debug logging with the current debug configuration.
func WithDebug() Option {
	return func(s *settings) {
		d := cloneDebugConfig(s.debug)
		d.Enabled = true
		s.debug = d
	}
}

// WithDebugConfig sets the debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(s *settings) {
		s.debug = config
	}
}

// WithRequestIDGenerator replaces the UUID generator behind call IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(s *settings) {
		d := cloneDebugConfig(s.debug)
		d.RequestIDGen = gen
		s.debug = d
	}
}

// WithClock injects the time source used for waits and breaker deadlines.
func WithClock(clock Clock) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithHooks replaces the whole hook set at once. Unset fields in h clear
// the corresponding hooks; use the per-hook options to change one hook
// while keeping the rest.
func WithHooks(h Hooks) Option {
	return func(s *settings) {
		s.hooks = h
	}
}

// WithBefore sets the hook run immediately before the first attempt.
func WithBefore(fn func(*http.Request)) Option {
	return func(s *settings) {
		s.hooks.Before = fn
	}
}

// WithAfter sets the hook run on success with the final response.
func WithAfter(fn func(*http.Request, *http.Response)) Option {
	return func(s *settings) {
		s.hooks.After = fn
	}
}

// WithOnError sets the hook run once per failed call with the final typed
// error.
func WithOnError(fn func(*http.Request, error)) Option {
	return func(s *settings) {
		s.hooks.OnError = fn
	}
}

// WithOnRetry sets the hook run once per scheduled retry.
func WithOnRetry(fn func(*RetryContext)) Option {
	return func(s *settings) {
		s.hooks.OnRetry = fn
	}
}

// WithOnTimeout sets the hook run when a call fails on its time budget.
func WithOnTimeout(fn func(*http.Request, error)) Option {
	return func(s *settings) {
		s.hooks.OnTimeout = fn
	}
}

// WithOnAbort sets the hook run when a call fails on a cancellation signal.
func WithOnAbort(fn func(*http.Request, error)) Option {
	return func(s *settings) {
		s.hooks.OnAbort = fn
	}
}

// WithOnCircuitOpen sets the hook run when a call trips the breaker open.
func WithOnCircuitOpen(fn func(*http.Request)) Option {
	return func(s *settings) {
		s.hooks.OnCircuitOpen = fn
	}
}

// WithOnCircuitClose sets the hook run when a call closes the breaker.
func WithOnCircuitClose(fn func(*http.Request)) Option {
	return func(s *settings) {
		s.hooks.OnCircuitClose = fn
	}
}

// WithOnComplete sets the hook run exactly once per call with the final
// outcome.
func WithOnComplete(fn func(*http.Request, *http.Response, error)) Option {
	return func(s *settings) {
		s.hooks.OnComplete = fn
	}
}

// WithTransformRequest sets the hook that may replace the outgoing request
// before any attempt.
func WithTransformRequest(fn func(*http.Request) (*http.Request, error)) Option {
	return func(s *settings) {
		s.hooks.TransformRequest = fn
	}
}

// WithTransformResponse sets the hook that may replace the response after a
// successful call.
func WithTransformResponse(fn func(*http.Response) (*http.Response, error)) Option {
	return func(s *settings) {
		s.hooks.TransformResponse = fn
	}
}

func cloneDebugConfig(d *DebugConfig) *DebugConfig {
	if d == nil {
		return DefaultDebugConfig()
	}
	clone := *d
	return &clone
}
