package asyncore

import (
	"context"
	"testing"
	"time"
)

// fakeClock only moves when slept on, or when advanced explicitly.
type fakeClock struct {
	now     time.Time
	sleeps  []time.Duration
	onSleep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.onSleep != nil {
		c.onSleep(d)
	}
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	s, err := New(append([]Option{WithClock(clock)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return s, clock
}

func TestSystemClock_Sleep(t *testing.T) {
	var c SystemClock

	start := time.Now()
	c.Sleep(context.Background(), 20*time.Millisecond)
	if d := time.Since(start); d < 20*time.Millisecond {
		t.Errorf("slept %v, want at least 20ms", d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start = time.Now()
	c.Sleep(ctx, time.Hour)
	if d := time.Since(start); d >= time.Second {
		t.Errorf("canceled sleep took %v", d)
	}

	start = time.Now()
	c.Sleep(context.Background(), -time.Second)
	if d := time.Since(start); d >= time.Second {
		t.Errorf("negative sleep took %v", d)
	}
}
