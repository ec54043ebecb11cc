package asyncore

import (
	"errors"
	"fmt"
	"net"
)

// Standard errors.
var (
	// ErrInvalidPeriod is returned when a task is added with a period that
	// is not strictly positive.
	ErrInvalidPeriod = errors.New("asyncore: task period must be positive")

	// ErrNilCallback is returned when a task is added without a callback.
	ErrNilCallback = errors.New("asyncore: nil callback")

	// ErrConditionDead is returned when a task is added to a condition that
	// has already been observed false.
	ErrConditionDead = errors.New("asyncore: condition is no longer true")

	// ErrReentrantRun is returned when Run is called while the scheduler is
	// already running, including from within one of its own callbacks.
	ErrReentrantRun = errors.New("asyncore: scheduler is already running")

	// ErrUninitialized is returned when an API that requires prior
	// initialization is used before it, e.g. [Stdin.NextLine] on a zero
	// value.
	ErrUninitialized = errors.New("asyncore: not initialized")

	// ErrSpawnFailed is matched by [*SpawnError].
	ErrSpawnFailed = errors.New("asyncore: failed to spawn worker")

	// ErrFrameCorrupt is matched by [*FrameError].
	ErrFrameCorrupt = errors.New("asyncore: corrupt frame")

	// ErrTLSHandshakeFailed is matched by [*HandshakeError].
	ErrTLSHandshakeFailed = errors.New("asyncore: tls handshake failed")

	// ErrPayloadContainsNUL is returned when an encoded message would
	// contain the frame delimiter.
	ErrPayloadContainsNUL = errors.New("asyncore: encoded payload contains NUL byte")

	// ErrWorkerClosed is returned by [Worker.Send] after [Worker.Close].
	ErrWorkerClosed = errors.New("asyncore: worker closed")

	// ErrServerClosed is returned by operations on a closed [Server].
	ErrServerClosed = errors.New("asyncore: server closed")
)

// SpawnError reports that a worker process could not be created.
type SpawnError struct {
	Cause error
	Path  string
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("asyncore: failed to spawn worker %q", e.Path)
	}
	return fmt.Sprintf("asyncore: failed to spawn worker %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *SpawnError) Unwrap() error {
	return e.Cause
}

// Is matches [ErrSpawnFailed].
func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawnFailed
}

// FrameError reports a completed frame whose payload failed to decode.
// The reader resets and the channel survives.
type FrameError struct {
	Cause   error
	Payload []byte
}

// Error implements the error interface.
func (e *FrameError) Error() string {
	return fmt.Sprintf("asyncore: corrupt frame (%d bytes): %v", len(e.Payload), e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *FrameError) Unwrap() error {
	return e.Cause
}

// Is matches [ErrFrameCorrupt].
func (e *FrameError) Is(target error) bool {
	return target == ErrFrameCorrupt
}

// HandshakeError reports a TLS handshake that terminally failed. The
// connection has been closed by the time it is observed.
type HandshakeError struct {
	Cause  error
	Remote net.Addr
}

// Error implements the error interface.
func (e *HandshakeError) Error() string {
	remote := "unknown"
	if e.Remote != nil {
		remote = e.Remote.String()
	}
	return fmt.Sprintf("asyncore: tls handshake with %s failed: %v", remote, e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *HandshakeError) Unwrap() error {
	return e.Cause
}

// Is matches [ErrTLSHandshakeFailed].
func (e *HandshakeError) Is(target error) bool {
	return target == ErrTLSHandshakeFailed
}
