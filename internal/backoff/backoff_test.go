package backoff

import (
	"testing"
	"time"
)

func TestExponentialDoubling(t *testing.T) {
	e := Exponential{Base: 200 * time.Millisecond, Max: time.Minute}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 400 * time.Millisecond},
		{2, 800 * time.Millisecond},
		{3, 1600 * time.Millisecond},
		{0, 400 * time.Millisecond}, // clamped to attempt 1
	}

	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialCap(t *testing.T) {
	e := Exponential{Base: time.Second, Max: 5 * time.Second}

	if got := e.Delay(10); got != 5*time.Second {
		t.Errorf("Delay(10) = %v, want cap %v", got, 5*time.Second)
	}
}

func TestExponentialOverflowClamp(t *testing.T) {
	e := Exponential{Base: 10 * time.Second, Max: time.Minute}

	// Attempt numbers large enough to overflow the shift must still land
	// on the cap rather than going negative.
	if got := e.Delay(1000); got != time.Minute {
		t.Errorf("Delay(1000) = %v, want %v", got, time.Minute)
	}
}

func TestExponentialJitterBounds(t *testing.T) {
	e := Exponential{Base: 100 * time.Millisecond, Max: time.Minute, Jitter: 50 * time.Millisecond}

	lo := 400 * time.Millisecond
	hi := lo + 50*time.Millisecond
	for i := 0; i < 200; i++ {
		d := e.Delay(2)
		if d < lo || d >= hi {
			t.Fatalf("Delay(2) = %v, want in [%v, %v)", d, lo, hi)
		}
	}
}

func TestConstant(t *testing.T) {
	c := Constant(250 * time.Millisecond)

	for _, attempt := range []int{1, 2, 7} {
		if got := c.Delay(attempt); got != 250*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 250*time.Millisecond)
		}
	}

	if got := Constant(-1).Delay(1); got != 0 {
		t.Errorf("negative Constant Delay = %v, want 0", got)
	}
}

func BenchmarkExponentialDelay(b *testing.B) {
	e := Exponential{Base: 200 * time.Millisecond, Max: 10 * time.Second, Jitter: 100 * time.Millisecond}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Delay(i%10 + 1)
	}
}
