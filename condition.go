package asyncore

import (
	"fmt"
	"time"
)

// GroupKind distinguishes the permanent task groups from user-defined
// conditions.
type GroupKind int

const (
	// KindEssential is the permanent group whose tasks keep the loop alive.
	KindEssential GroupKind = iota
	// KindInessential is the permanent group whose tasks run only alongside
	// essential or condition-gated tasks.
	KindInessential
	// KindUserDefined is a predicate-gated group created by
	// [Scheduler.Condition].
	KindUserDefined
)

// String returns a human-readable representation of the kind.
func (k GroupKind) String() string {
	switch k {
	case KindEssential:
		return "essential"
	case KindInessential:
		return "inessential"
	case KindUserDefined:
		return "user-defined"
	default:
		return fmt.Sprintf("GroupKind(%d)", int(k))
	}
}

// Condition is a bag of tasks gated by a predicate.
//
// State machine (user-defined conditions only):
//
//	ALIVE -> DEAD   [first iteration the predicate returns false]
//	DEAD            (terminal)
//
// On the transition, the on-false handlers run in registration order, then
// the condition and all of its tasks are detached. None of its tasks fire in
// the iteration that observed the transition.
type Condition struct {
	predicate func() bool
	sched     *Scheduler
	tasks     []*Task
	onFalse   []func()
	id        uint64
	kind      GroupKind
	dead      bool
}

// Add registers fn to be called every period while the condition holds.
// Options other than [CallImmediately] are ignored.
func (c *Condition) Add(fn TaskFunc, period time.Duration, opts ...TaskOption) (*Task, error) {
	cfg := resolveTaskOptions(opts)
	return c.add(fn, period, cfg.callImmediately)
}

func (c *Condition) add(fn TaskFunc, period time.Duration, callImmediately bool) (*Task, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if c.dead {
		return nil, ErrConditionDead
	}

	s := c.sched
	s.nextID++
	t := &Task{
		fn:      fn,
		sched:   s,
		period:  period,
		id:      s.nextID,
		group:   c.id,
		nextRun: s.clock.Now(),
	}
	if !callImmediately {
		t.nextRun = t.nextRun.Add(period)
	}

	c.tasks = append(c.tasks, t)
	s.dirty = true
	return t, nil
}

// OnFalse registers a handler invoked exactly once, when the predicate is
// first observed false. Handlers run in registration order. It has no
// effect on the permanent groups, which never become false.
func (c *Condition) OnFalse(fn func()) *Condition {
	if fn != nil && !c.dead {
		c.onFalse = append(c.onFalse, fn)
	}
	return c
}

// Alive reports whether the condition has not yet been observed false.
func (c *Condition) Alive() bool {
	return !c.dead
}

// Kind returns the group kind.
func (c *Condition) Kind() GroupKind {
	return c.kind
}

// Len returns the number of tasks currently enrolled.
func (c *Condition) Len() int {
	return len(c.tasks)
}

// evaluate runs the predicate. A panicking predicate is reported and
// treated as false.
func (c *Condition) evaluate() (ok bool) {
	if c.kind != KindUserDefined {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			c.sched.logError("condition", "predicate panicked, treating as false", fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()
	return c.predicate()
}

// collapse performs the ALIVE -> DEAD transition. The caller detaches the
// condition from the scheduler.
func (c *Condition) collapse() {
	c.dead = true
	c.sched.debug("condition").
		Uint64("condition", c.id).
		Int("tasks", len(c.tasks)).
		Int("handlers", len(c.onFalse)).
		Log("condition became false")
	handlers := c.onFalse
	c.onFalse = nil
	for _, fn := range handlers {
		fn()
	}
	for _, t := range c.tasks {
		t.removed = true
	}
	c.tasks = nil
}

// detach removes the task with the given id, preserving insertion order.
func (c *Condition) detach(id uint64) {
	for i, t := range c.tasks {
		if t.id == id {
			copy(c.tasks[i:], c.tasks[i+1:])
			c.tasks[len(c.tasks)-1] = nil
			c.tasks = c.tasks[:len(c.tasks)-1]
			return
		}
	}
}
