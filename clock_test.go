package ffetch

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock advances its own time on Sleep instead of blocking, recording
// every wait so tests can assert on retry pacing without real delays.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	if d > 0 {
		f.now = f.now.Add(d)
		f.sleeps = append(f.sleeps, d)
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fakeClock) slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func TestRealClockNow(t *testing.T) {
	c := realClock{}

	first := c.Now()
	second := c.Now()

	if first.IsZero() {
		t.Fatal("Now() returned the zero time")
	}
	if second.Before(first) {
		t.Errorf("Now() went backwards: %v then %v", first, second)
	}
}

func TestRealClockSleepCompletes(t *testing.T) {
	c := realClock{}

	if err := c.Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep() returned error: %v", err)
	}
}

func TestRealClockSleepZeroDuration(t *testing.T) {
	c := realClock{}

	if err := c.Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) returned error: %v", err)
	}
	if err := c.Sleep(context.Background(), -time.Second); err != nil {
		t.Errorf("Sleep(-1s) returned error: %v", err)
	}
}

func TestRealClockSleepCancelled(t *testing.T) {
	c := realClock{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := c.Sleep(ctx, time.Hour)
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sleep did not return promptly on cancellation, took %v", elapsed)
	}
}

func TestFakeClockRecordsSleeps(t *testing.T) {
	fc := newFakeClock()
	before := fc.Now()

	if err := fc.Sleep(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("Sleep() returned error: %v", err)
	}
	if err := fc.Sleep(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("Sleep() returned error: %v", err)
	}

	if got := fc.Now().Sub(before); got != 5*time.Second {
		t.Errorf("Expected clock to advance 5s, got %v", got)
	}

	sleeps := fc.slept()
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second || sleeps[1] != 3*time.Second {
		t.Errorf("Unexpected recorded sleeps: %v", sleeps)
	}
}
