// Minimal example for ffetch demonstrating a basic resilient GET plus a
// client with a custom retry predicate, request shaping and rate limiting.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fetch-kit/ffetch"
)

const httpbinJSON = "https://httpbin.org/json"

func main() {
	// --- Basic client (batteries-included defaults) ---
	basic := ffetch.New(
		ffetch.WithRetries(3),
		ffetch.WithBackoffBase(100*time.Millisecond),
		ffetch.WithBackoffMax(5*time.Second),
		ffetch.WithCircuit(ffetch.CircuitConfig{}),
		ffetch.WithDedupe(),
		ffetch.WithSimpleLogger(),
	)
	if !basic.IsValid() {
		log.Fatalf("invalid basic client config: %v", basic.ValidationError())
	}
	ctx := context.Background()
	resp, err := basic.Get(ctx, httpbinJSON)
	if err != nil {
		log.Fatalf("basic GET failed: %v", err)
	}
	_ = resp.Body.Close()
	fmt.Println("basic GET status", resp.StatusCode)

	// --- Advanced snippet: custom retry predicate + request shaping ---
	advanced := ffetch.New(
		ffetch.WithShouldRetry(func(rc *ffetch.RetryContext) bool {
			return rc.Err != nil || (rc.Response != nil && rc.Response.StatusCode >= 500)
		}),
		ffetch.WithTransformRequest(func(req *http.Request) (*http.Request, error) {
			req.Header.Set("User-Agent", "ffetch-example")
			return req, nil
		}),
		ffetch.WithRateLimit(rate.Every(100*time.Millisecond), 10),
		ffetch.WithRetries(2),
		ffetch.WithTimeout(5*time.Second),
	)
	resp, err = advanced.Get(ctx, httpbinJSON)
	if err != nil {
		log.Fatalf("advanced GET failed: %v", err)
	}
	_ = resp.Body.Close()
	fmt.Println("advanced GET status", resp.StatusCode)
}
