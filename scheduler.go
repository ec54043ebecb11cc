package asyncore

import (
	"context"
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

// Scheduler is a cooperative, single-goroutine periodic task scheduler.
//
// It owns a list of groups: index 0 is the essential group, index 1 the
// inessential group, and indices from 2 are user-defined conditions, in
// creation order. Each iteration of [Scheduler.Run] derives the active task
// list from the groups (only when dirty), fires every due task in list
// order, then sleeps until the next edge of the shortest period.
//
// A Scheduler is not safe for concurrent use. All methods, including those
// of its tasks and conditions, must be called from the goroutine running
// the loop (typically from task callbacks) or before Run is called.
type Scheduler struct {
	clock  Clock
	logger *logiface.Logger[logiface.Event]
	events *EventTarget

	groups []*Condition
	active []*Task

	nextID   uint64
	shortest time.Duration

	// dirty signals that the active list and shortest period must be
	// recomputed before the next dispatch.
	dirty   bool
	exit    bool
	running bool
}

// New creates a Scheduler with empty essential and inessential groups.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveSchedulerOptions(opts)
	if err != nil {
		return nil, err
	}
	s := &Scheduler{
		clock:  cfg.clock,
		logger: cfg.logger,
		events: NewEventTarget(),
		dirty:  true,
	}
	s.newGroup(KindEssential, nil)
	s.newGroup(KindInessential, nil)
	return s, nil
}

func (s *Scheduler) newGroup(kind GroupKind, predicate func() bool) *Condition {
	s.nextID++
	c := &Condition{
		predicate: predicate,
		sched:     s,
		id:        s.nextID,
		kind:      kind,
	}
	s.groups = append(s.groups, c)
	s.dirty = true
	return c
}

// lookupGroup resolves a group id, returning nil if it was dropped.
func (s *Scheduler) lookupGroup(id uint64) *Condition {
	for _, g := range s.groups {
		if g.id == id {
			return g
		}
	}
	return nil
}

// Logger returns the logger configured via [WithLogger], which may be nil.
func (s *Scheduler) Logger() *logiface.Logger[logiface.Event] {
	return s.logger
}

// Now returns the current time according to the scheduler's clock.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now()
}

// Add registers fn to be called every period. By default the task is
// essential and first fires once period has elapsed, see [CallImmediately]
// and [Inessential].
func (s *Scheduler) Add(fn TaskFunc, period time.Duration, opts ...TaskOption) (*Task, error) {
	cfg := resolveTaskOptions(opts)
	g := s.groups[KindEssential]
	if cfg.inessential {
		g = s.groups[KindInessential]
	}
	return g.add(fn, period, cfg.callImmediately)
}

// AddInessential is shorthand for Add with the [Inessential] option.
func (s *Scheduler) AddInessential(fn TaskFunc, period time.Duration, opts ...TaskOption) (*Task, error) {
	return s.Add(fn, period, append(opts, Inessential())...)
}

// Timeout calls fn once, after d. The underlying task removes itself before
// fn is called, so fn may freely re-enter the scheduler. A non-positive d
// makes fn due on the next iteration.
func (s *Scheduler) Timeout(fn func(), d time.Duration) (*Task, error) {
	if fn == nil {
		return nil, ErrNilCallback
	}
	var opts []TaskOption
	if d <= 0 {
		d = DefaultPeriod
		opts = append(opts, CallImmediately())
	}
	var t *Task
	t, err := s.Add(func(bool) {
		t.Remove()
		fn()
	}, d, opts...)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Condition creates a user-defined group, gated by predicate, which is
// evaluated at least once per loop iteration until it first returns false.
func (s *Scheduler) Condition(predicate func() bool) *Condition {
	if predicate == nil {
		predicate = func() bool { return false }
	}
	c := s.newGroup(KindUserDefined, predicate)
	s.debug("condition").
		Uint64("condition", c.id).
		Log("condition created")
	return c
}

// Exit requests that Run return once the current iteration completes.
func (s *Scheduler) Exit() {
	s.exit = true
}

// Run runs the loop until [Scheduler.Exit] is called, ctx is done, or no
// essential or condition-gated tasks remain. Inessential tasks alone never
// keep the loop alive.
//
// Panics raised by task callbacks, on-false handlers or event listeners are
// not recovered, and propagate to the caller.
func (s *Scheduler) Run(ctx context.Context) error {
	return s.RunWhile(ctx, nil)
}

// RunWhile is like Run, additionally returning once predicate, evaluated at
// the end of each iteration, returns false. A nil predicate is ignored.
func (s *Scheduler) RunWhile(ctx context.Context, predicate func() bool) error {
	if s.running {
		return ErrReentrantRun
	}
	s.running = true
	defer func() {
		s.running = false
	}()

	s.exit = false
	s.dirty = true

	s.debug("loop").Log("loop started")
	defer s.debug("loop").Log("loop stopped")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := s.clock.Now()

		if s.dirty {
			if !s.rebuild() {
				return nil
			}
		} else if s.collapseFalse() {
			// the collapsed group's tasks must not fire this iteration
			if s.shouldStop(predicate) {
				return nil
			}
			continue
		}

		s.dispatch(ctx, start)

		if s.shouldStop(predicate) {
			return nil
		}
	}
}

// rebuild recomputes the active list and shortest period, firing on-false
// handlers of any condition found false. It returns false if no essential
// or condition-gated tasks remain.
func (s *Scheduler) rebuild() bool {
	var active []*Task
	for {
		// cleared first, so mutations made by on-false handlers repeat the pass
		s.dirty = false

		active = append(active[:0], s.groups[KindEssential].tasks...)
		for i := int(KindUserDefined); i < len(s.groups); {
			g := s.groups[i]
			if g.evaluate() {
				active = append(active, g.tasks...)
				i++
				continue
			}
			g.collapse()
			s.dropGroup(g)
		}

		if !s.dirty {
			break
		}
	}

	if len(active) == 0 {
		s.active = nil
		return false
	}

	active = append(active, s.groups[KindInessential].tasks...)

	shortest := active[0].period
	for _, t := range active[1:] {
		if t.period < shortest {
			shortest = t.period
		}
	}

	s.active = active
	s.shortest = shortest

	s.debug("loop").
		Int("tasks", len(active)).
		Int("conditions", len(s.groups)-int(KindUserDefined)).
		Dur("shortest", shortest).
		Log("active tasks rebuilt")

	return true
}

// collapseFalse re-evaluates the user-defined conditions, collapsing the
// first one found false. It reports whether a collapse occurred.
func (s *Scheduler) collapseFalse() bool {
	for i := int(KindUserDefined); i < len(s.groups); i++ {
		g := s.groups[i]
		if g.evaluate() {
			continue
		}
		g.collapse()
		s.dropGroup(g)
		s.dirty = true
		return true
	}
	return false
}

func (s *Scheduler) dropGroup(g *Condition) {
	for i, v := range s.groups {
		if v == g {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			return
		}
	}
}

// dispatch fires every due task of the active list, then sleeps until the
// next edge, unless a shortest-period task is already running late.
func (s *Scheduler) dispatch(ctx context.Context, start time.Time) {
	tick := s.clock.Now()
	onTime := true
	nextEdge := tick.Add(s.shortest)

	for _, t := range s.active {
		if t.removed || t.nextRun.After(tick) {
			continue
		}
		t.nextRun = t.nextRun.Add(t.period)
		late := t.nextRun.Before(tick)
		if t.period == s.shortest {
			if onTime && late {
				onTime = false
			} else if t.nextRun.After(nextEdge) {
				nextEdge = t.nextRun
			}
		}
		t.fn(late)
	}

	if !onTime {
		return
	}
	if remaining := nextEdge.Sub(start); remaining > 0 {
		s.clock.Sleep(ctx, remaining)
	}
}

func (s *Scheduler) shouldStop(predicate func() bool) bool {
	if s.exit {
		return true
	}
	return predicate != nil && !s.safePredicate(predicate)
}

func (s *Scheduler) safePredicate(predicate func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logError("loop", "run predicate panicked, treating as false", fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()
	return predicate()
}

// On registers fn to be called, in registration order, each time event is
// fired.
func (s *Scheduler) On(event string, fn EventListenerFunc) ListenerID {
	return s.events.AddEventListener(event, fn)
}

// Off removes a listener registered via [Scheduler.On].
func (s *Scheduler) Off(event string, id ListenerID) bool {
	return s.events.RemoveEventListenerByID(event, id)
}

// Fire synchronously calls every listener of event with args.
func (s *Scheduler) Fire(event string, args ...any) {
	s.events.DispatchEvent(&Event{Type: event, Args: args})
}
