package asyncore

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"
)

// DefaultStdinPeriod is the period of the task that dispatches stdin lines.
const DefaultStdinPeriod = 100 * time.Millisecond

// StdinOption configures [InitStdin].
type StdinOption func(*stdinOptions)

type stdinOptions struct {
	reader      io.Reader
	handler     func(line string)
	inessential bool
}

// WithStdinReader reads lines from r instead of os.Stdin.
func WithStdinReader(r io.Reader) StdinOption {
	return func(o *stdinOptions) {
		o.reader = r
	}
}

// WithLineHandler calls fn for each line, before [EventStdinLine] is fired.
func WithLineHandler(fn func(line string)) StdinOption {
	return func(o *stdinOptions) {
		o.handler = fn
	}
}

// StdinInessential registers the dispatch task as inessential, so that
// waiting for input does not keep the loop alive.
func StdinInessential() StdinOption {
	return func(o *stdinOptions) {
		o.inessential = true
	}
}

// Stdin delivers lines of standard input to the loop. A reader goroutine
// feeds lines through a channel that a task drains every
// [DefaultStdinPeriod], firing [EventStdinLine] per line.
type Stdin struct {
	sched   *Scheduler
	lines   chan string
	task    *Task
	handler func(line string)
	err     error
}

// InitStdin starts reading lines. The dispatch task removes itself at EOF.
func InitStdin(s *Scheduler, opts ...StdinOption) *Stdin {
	cfg := &stdinOptions{reader: os.Stdin}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	x := &Stdin{
		sched:   s,
		lines:   make(chan string, 64),
		handler: cfg.handler,
	}

	go x.read(cfg.reader)

	taskOpts := []TaskOption{CallImmediately()}
	if cfg.inessential {
		taskOpts = append(taskOpts, Inessential())
	}
	// the period is valid and fn is non-nil, so this cannot fail
	x.task, _ = s.Add(x.dispatch, DefaultStdinPeriod, taskOpts...)

	return x
}

func (x *Stdin) read(r io.Reader) {
	defer close(x.lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		x.lines <- strings.TrimRight(scanner.Text(), " \t\r\n")
	}
	// read only after the channel is closed
	x.err = scanner.Err()
}

func (x *Stdin) dispatch(bool) {
	for {
		select {
		case line, ok := <-x.lines:
			if !ok {
				x.eof()
				return
			}
			if x.handler != nil {
				x.handler(line)
			}
			x.sched.Fire(EventStdinLine, line)
		default:
			return
		}
	}
}

func (x *Stdin) eof() {
	if x.err != nil {
		x.sched.logError("stdin", "read failed", x.err)
	} else {
		x.sched.debug("stdin").Log("end of input")
	}
	x.task.Remove()
}

// NextLine blocks until a line is available, ctx is done, or input ends, in
// which case it returns io.EOF. Lines consumed this way are not dispatched.
// It returns [ErrUninitialized] if x was not returned by [InitStdin].
func (x *Stdin) NextLine(ctx context.Context) (string, error) {
	if x == nil || x.lines == nil {
		return "", ErrUninitialized
	}
	select {
	case line, ok := <-x.lines:
		if !ok {
			if x.err != nil {
				return "", x.err
			}
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close removes the dispatch task. Lines remain available to NextLine.
func (x *Stdin) Close() {
	if x == nil || x.task == nil {
		return
	}
	x.task.Remove()
}
