// Package backoff computes retry delays.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the wait before the next retry attempt.
type Strategy interface {
	// Delay returns the wait duration given the 1-based number of the
	// attempt that just finished.
	Delay(attempt int) time.Duration
}

// Exponential doubles a base delay for every finished attempt and adds
// uniform additive jitter: Delay(n) = min(Base·2ⁿ, Max) + rand[0, Jitter).
// A Max of zero leaves the growth uncapped.
type Exponential struct {
	Base   time.Duration
	Max    time.Duration
	Jitter time.Duration
}

// Delay implements Strategy.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	d := e.Base << uint(attempt)
	if d < 0 || (e.Max > 0 && d > e.Max) {
		d = e.Max
	}
	if e.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(e.Jitter)))
	}
	return d
}

// Constant waits the same duration before every retry.
type Constant time.Duration

// Delay implements Strategy.
func (c Constant) Delay(int) time.Duration {
	if c < 0 {
		return 0
	}
	return time.Duration(c)
}
