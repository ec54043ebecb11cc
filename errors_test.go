package asyncore

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
)

func TestSpawnError(t *testing.T) {
	err := error(&SpawnError{Cause: exec.ErrNotFound, Path: "missing"})
	if !errors.Is(err, ErrSpawnFailed) {
		t.Error("SpawnError should match ErrSpawnFailed")
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Error("SpawnError should unwrap to its cause")
	}
	if errors.Is(err, ErrFrameCorrupt) {
		t.Error("SpawnError should not match ErrFrameCorrupt")
	}
	if !strings.Contains(err.Error(), `"missing"`) {
		t.Errorf("unexpected message: %s", err)
	}

	if got := (&SpawnError{Path: "x"}).Error(); got != `asyncore: failed to spawn worker "x"` {
		t.Errorf("unexpected message without cause: %s", got)
	}
}

func TestFrameError(t *testing.T) {
	cause := errors.New("bad json")
	err := fmt.Errorf("wrapped: %w", &FrameError{Cause: cause, Payload: []byte("abc")})
	if !errors.Is(err, ErrFrameCorrupt) {
		t.Error("FrameError should match ErrFrameCorrupt")
	}
	if !errors.Is(err, cause) {
		t.Error("FrameError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "3 bytes") {
		t.Errorf("unexpected message: %s", err)
	}

	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Error("errors.As should find *FrameError")
	}
}

func TestHandshakeError(t *testing.T) {
	cause := errors.New("tls: first record does not look like a TLS handshake")
	err := &HandshakeError{Cause: cause, Remote: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1234}}
	if !errors.Is(err, ErrTLSHandshakeFailed) {
		t.Error("HandshakeError should match ErrTLSHandshakeFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("HandshakeError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1234") {
		t.Errorf("unexpected message: %s", err)
	}
	if !strings.Contains((&HandshakeError{Cause: cause}).Error(), "unknown") {
		t.Error("missing remote should read as unknown")
	}
}
