// Package ffetch wraps plain HTTP round trips with composable reliability primitives:
//
//   - Whole-call timeouts (one budget spanning every retry attempt)
//   - Retries with exponential backoff + jitter, honoring Retry-After
//   - Circuit breaker (closed / open, consecutive-failure threshold)
//   - In-flight request de-duplication (merges concurrent identical requests)
//   - Cancellation that composes caller contexts with the call budget
//   - A typed error taxonomy (timeout, abort, circuit open, retry limit, network, http)
//   - Lifecycle hooks for every phase plus request / response transforms
//   - Prometheus metrics and lightweight structured debug logging
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - Per-call overrides without mutating shared client state
//   - Safe concurrent use of a single *Client instance
//   - Pluggable transport, clock, metrics and logging
//
// Typical usage:
//
//	client := ffetch.New(
//	    ffetch.WithTimeout(10*time.Second),
//	    ffetch.WithRetries(3),
//	    ffetch.WithCircuit(ffetch.CircuitConfig{}),
//	    ffetch.WithDedupe(),
//	)
//	resp, err := client.Get(ctx, "https://api.example.com/data")
//
// Only network errors and 5xx / 429 responses trigger retries by default; override with
// WithShouldRetry. Logging is opt-in: provide a Logger (e.g. via WithSimpleLogger) and
// enable debug flags selectively (WithDebug / WithDebugConfig) to trace attempts, breaker
// transitions and deduplication decisions.
package ffetch
