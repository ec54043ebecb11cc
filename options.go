package asyncore

import (
	"github.com/joeycumines/logiface"
)

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	clock  Clock
	logger *logiface.Logger[logiface.Event]
}

// --- Scheduler Options ---

// Option configures a Scheduler instance.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

// schedulerOptionImpl implements Option.
type schedulerOptionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (o *schedulerOptionImpl) applyScheduler(opts *schedulerOptions) error {
	return o.applySchedulerFunc(opts)
}

// WithLogger sets the structured logger used by the scheduler and every
// component attached to it (workers, servers, stdin).
// A nil logger disables logging, except for error reports, which fall back
// to the standard library log package.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithClock replaces the time source used for pacing. Intended for tests
// and simulations; the default is [SystemClock].
func WithClock(clock Clock) Option {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		if clock == nil {
			clock = SystemClock{}
		}
		opts.clock = clock
		return nil
	}}
}

// resolveSchedulerOptions applies Option instances to schedulerOptions.
func resolveSchedulerOptions(opts []Option) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		clock: SystemClock{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Task Options ---

// TaskOption configures a single task registration.
type TaskOption func(*taskOptions)

type taskOptions struct {
	callImmediately bool
	inessential     bool
}

// CallImmediately makes the task due on the next loop iteration, instead of
// after its first period has elapsed.
func CallImmediately() TaskOption {
	return func(o *taskOptions) {
		o.callImmediately = true
	}
}

// Inessential registers the task in the inessential group: it runs only
// while at least one essential or condition-gated task exists, and does not
// keep [Scheduler.Run] alive on its own.
// It has no effect on [Condition.Add].
func Inessential() TaskOption {
	return func(o *taskOptions) {
		o.inessential = true
	}
}

func resolveTaskOptions(opts []TaskOption) taskOptions {
	var cfg taskOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
