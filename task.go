package asyncore

import (
	"time"
)

// DefaultPeriod is the period used by components that poll as often as
// sensible, e.g. the acceptor task, and the minimum useful task period.
const DefaultPeriod = time.Millisecond

// TaskFunc is a periodic callback. late is true when the task missed at
// least one tick since its previous execution, in which case the callback
// should avoid catch-up work it cannot keep up with.
type TaskFunc func(late bool)

// Task is one periodic unit of work, owned by a [Condition].
//
// A Task carries only identifiers of its owner, resolved through the
// scheduler on removal, so that the group remains the sole owner.
type Task struct {
	nextRun time.Time
	fn      TaskFunc
	sched   *Scheduler
	period  time.Duration
	id      uint64
	group   uint64
	removed bool
}

// Period returns the task's period.
func (t *Task) Period() time.Duration {
	return t.period
}

// NextRun returns the time of the next scheduled invocation.
func (t *Task) NextRun() time.Time {
	return t.nextRun
}

// Removed reports whether the task was detached, either by [Task.Remove]
// or because its owning condition became false.
func (t *Task) Removed() bool {
	return t == nil || t.removed
}

// Remove detaches the task from its owner. It takes effect immediately: a
// removed task is never invoked again, even later in the current iteration.
// Remove is idempotent and safe to call from any task callback, including
// the task's own.
func (t *Task) Remove() {
	if t == nil || t.removed {
		return
	}
	t.removed = true
	if g := t.sched.lookupGroup(t.group); g != nil {
		g.detach(t.id)
	}
	t.sched.dirty = true
}
