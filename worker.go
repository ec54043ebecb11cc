package asyncore

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultReadPeriod is the default period of a worker's reader task.
const DefaultReadPeriod = 50 * time.Millisecond

// maxReadsPerTick bounds the reads a single reader tick performs, so that a
// chatty peer cannot stall the loop.
const maxReadsPerTick = 64

// MessageHandler receives decoded messages from the other side of a worker
// channel. It always runs on the loop goroutine.
type MessageHandler func(v any)

// WorkerOption configures [Spawn].
type WorkerOption func(*workerOptions)

type workerOptions struct {
	stdout      io.Writer
	diagnostics io.Writer
	codec       Codec
	dir         string
	args        []string
	env         []string
	readPeriod  time.Duration
}

// WithArgs sets the arguments passed to the worker executable.
func WithArgs(args ...string) WorkerOption {
	return func(o *workerOptions) {
		o.args = append([]string(nil), args...)
	}
}

// WithEnv sets the worker's environment, in the form of [exec.Cmd.Env].
// By default the worker inherits the parent's environment.
func WithEnv(env ...string) WorkerOption {
	return func(o *workerOptions) {
		o.env = append([]string(nil), env...)
	}
}

// WithDir sets the worker's working directory.
func WithDir(dir string) WorkerOption {
	return func(o *workerOptions) {
		o.dir = dir
	}
}

// WithStdout sets the destination of the worker's standard output, which is
// passed through unchanged. Defaults to os.Stdout; nil discards it.
func WithStdout(w io.Writer) WorkerOption {
	return func(o *workerOptions) {
		o.stdout = w
	}
}

// WithDiagnostics sets the destination of bytes the worker writes to its
// standard error outside of frames. Defaults to os.Stderr; nil discards
// them.
func WithDiagnostics(w io.Writer) WorkerOption {
	return func(o *workerOptions) {
		o.diagnostics = w
	}
}

// WithCodec sets the message codec. Both sides must agree. Defaults to
// [JSONCodec].
func WithCodec(codec Codec) WorkerOption {
	return func(o *workerOptions) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// WithReadPeriod sets the period of the reader task.
func WithReadPeriod(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		o.readPeriod = d
	}
}

func resolveWorkerOptions(opts []WorkerOption) *workerOptions {
	cfg := &workerOptions{
		stdout:      os.Stdout,
		diagnostics: os.Stderr,
		codec:       JSONCodec{},
		readPeriod:  DefaultReadPeriod,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// Worker is the parent side of a channel to a child process.
//
// Messages to the child are written, framed, to its standard input.
// Messages from the child are read, framed, from its standard error. Bytes
// outside of frames are diagnostics, and are passed through.
//
// The worker is driven by a reader task, gated by a condition that holds
// while the child is running. Once the child exits, the condition collapses,
// the remaining output is drained, and [EventWorkerExited] is fired.
type Worker struct {
	sched     *Scheduler
	cmd       *exec.Cmd
	codec     Codec
	onMessage MessageHandler
	stdin     nonBlockingWriter
	stderr    nonBlockingReader
	decoder   *FrameDecoder
	cond      *Condition
	task      *Task
	exited    chan struct{}
	exitErr   error
	id        string
	path      string
	outbuf    []byte
	readBuf   []byte
	closed    bool
	eof       bool
}

// Spawn starts the executable at path as a worker. A path containing a
// separator is resolved relative to the working directory, otherwise it is
// looked up in PATH.
func Spawn(s *Scheduler, path string, onMessage MessageHandler, opts ...WorkerOption) (*Worker, error) {
	cfg := resolveWorkerOptions(opts)
	if cfg.readPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}

	resolved, err := resolveExecutable(path)
	if err != nil {
		return nil, &SpawnError{Cause: err, Path: path}
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Cause: err, Path: resolved}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		_ = inR.Close()
		_ = inW.Close()
		return nil, &SpawnError{Cause: err, Path: resolved}
	}

	cmd := exec.Command(resolved, cfg.args...)
	cmd.Stdin = inR
	cmd.Stderr = errW
	cmd.Stdout = cfg.stdout
	cmd.Env = cfg.env
	cmd.Dir = cfg.dir

	if err := cmd.Start(); err != nil {
		for _, f := range [...]*os.File{inR, inW, errR, errW} {
			_ = f.Close()
		}
		return nil, &SpawnError{Cause: err, Path: resolved}
	}

	// the child holds its own copies
	_ = inR.Close()
	_ = errW.Close()

	w := &Worker{
		sched:     s,
		cmd:       cmd,
		codec:     cfg.codec,
		onMessage: onMessage,
		stdin:     newNonBlockingWriter(inW),
		stderr:    newNonBlockingReader(errR),
		exited:    make(chan struct{}),
		id:        uuid.NewString(),
		path:      resolved,
		readBuf:   make([]byte, readChunkSize),
	}
	w.decoder = NewFrameDecoder(cfg.diagnostics, w.handleFrame)

	go func() {
		err := cmd.Wait()
		w.exitErr = err
		close(w.exited)
	}()

	w.cond = s.Condition(w.Running).OnFalse(w.finish)
	w.task, err = w.cond.Add(w.poll, cfg.readPeriod)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = w.closePipes()
		return nil, &SpawnError{Cause: err, Path: resolved}
	}

	s.info("worker").
		Str("worker", w.id).
		Str("path", resolved).
		Int("pid", cmd.Process.Pid).
		Log("worker spawned")

	return w, nil
}

func resolveExecutable(path string) (string, error) {
	if path == "" {
		return "", exec.ErrNotFound
	}
	if strings.ContainsRune(path, filepath.Separator) || strings.ContainsRune(path, '/') {
		return filepath.Abs(path)
	}
	return exec.LookPath(path)
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() string {
	return w.id
}

// Pid returns the process id of the child.
func (w *Worker) Pid() int {
	return w.cmd.Process.Pid
}

// Running reports whether the child has not yet exited.
func (w *Worker) Running() bool {
	select {
	case <-w.exited:
		return false
	default:
		return true
	}
}

// ExitErr returns the result of waiting on the child, as per
// [exec.Cmd.Wait]. It is nil while the child is running.
func (w *Worker) ExitErr() error {
	if w.Running() {
		return nil
	}
	return w.exitErr
}

// Send encodes v and queues it for the child, writing as much as the pipe
// accepts without blocking. The remainder is flushed by the reader task.
func (w *Worker) Send(v any) error {
	if w.closed {
		return ErrWorkerClosed
	}
	buf, err := encodeFrame(w.outbuf, w.codec, v)
	if err != nil {
		return err
	}
	w.outbuf = buf
	return w.flush()
}

// Buffered returns the number of bytes queued but not yet written.
func (w *Worker) Buffered() int {
	return len(w.outbuf)
}

// Close stops the reader task and closes both pipes. The child observes EOF
// on its standard input. Close does not wait for the child.
func (w *Worker) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.task.Remove()
	err := w.closePipes()
	w.sched.debug("worker").
		Str("worker", w.id).
		Log("worker closed")
	return err
}

// Kill kills the child. Its remaining output is drained and
// [EventWorkerExited] fired as for any other exit.
func (w *Worker) Kill() error {
	if !w.Running() {
		return nil
	}
	err := w.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (w *Worker) closePipes() error {
	return errors.Join(w.stdin.close(), w.stderr.close())
}

func (w *Worker) poll(bool) {
	if err := w.flush(); err != nil {
		w.sched.debug("worker").
			Str("worker", w.id).
			Err(err).
			Log("flush failed")
	}
	w.drain()
}

func (w *Worker) flush() error {
	for len(w.outbuf) > 0 {
		n, err := w.stdin.writeAvailable(w.outbuf)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		w.outbuf = w.outbuf[n:]
	}
	if len(w.outbuf) == 0 {
		w.outbuf = nil
	}
	return nil
}

// drain feeds everything currently readable to the decoder.
func (w *Worker) drain() {
	for i := 0; i < maxReadsPerTick && !w.closed && !w.eof; i++ {
		n, err := w.stderr.readAvailable(w.readBuf)
		if n > 0 {
			w.decoder.Feed(w.readBuf[:n])
		}
		if err != nil {
			w.eof = true
			if err != io.EOF {
				w.sched.logError("worker", "read failed", err)
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

func (w *Worker) handleFrame(payload []byte) {
	v, err := decodeFrame(w.codec, payload)
	if err != nil {
		w.sched.logError("worker", "dropped corrupt frame", err)
		return
	}
	if w.onMessage != nil {
		w.onMessage(v)
	}
}

// finish runs once the child has exited.
func (w *Worker) finish() {
	if !w.closed {
		// the child is gone, so this terminates at EOF, unless a grandchild
		// inherited the pipe
		for !w.eof && !w.closed {
			n, err := w.stderr.readAvailable(w.readBuf)
			if n > 0 {
				w.decoder.Feed(w.readBuf[:n])
				continue
			}
			if err != nil {
				w.eof = true
				if err != io.EOF {
					w.sched.logError("worker", "final read failed", err)
				}
			}
			break
		}
		if w.decoder.Inside() {
			n := w.decoder.Discard()
			w.sched.warning("worker").
				Str("worker", w.id).
				Int("bytes", n).
				Log("discarded incomplete frame")
		}
		w.closed = true
		if err := w.closePipes(); err != nil {
			w.sched.debug("worker").
				Str("worker", w.id).
				Err(err).
				Log("close failed")
		}
	}

	w.sched.info("worker").
		Str("worker", w.id).
		Err(w.exitErr).
		Log("worker exited")

	w.sched.Fire(EventWorkerExited, w, w.exitErr)
}
