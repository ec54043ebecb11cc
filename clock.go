package asyncore

import (
	"context"
	"time"
)

// Clock is the time source of a [Scheduler]. Now must be monotonic.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d, returning early if ctx is done.
	Sleep(ctx context.Context, d time.Duration)
}

// SystemClock is the default [Clock], backed by the runtime's monotonic clock.
type SystemClock struct{}

// Now returns time.Now, which carries a monotonic reading.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleep blocks for d with nanosecond resolution, or until ctx is done.
func (SystemClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
