//go:build linux || darwin

package asyncore

import (
	"io"
	"net"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestRawAcceptor_AcceptAvailable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	x := newAcceptor(ln)
	if _, ok := x.(*rawAcceptor); !ok {
		t.Fatalf("expected *rawAcceptor, got %T", x)
	}

	conn, err := x.acceptAvailable()
	if err != nil {
		t.Fatalf("accept with nothing pending: %v", err)
	}
	if conn != nil {
		t.Fatal("expected no connection while nothing is pending")
	}

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	deadline := time.Now().Add(5 * time.Second)
	for conn == nil {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the pending connection")
		}
		if conn, err = x.acceptAvailable(); err != nil {
			t.Fatalf("accept: %v", err)
		}
		if conn == nil {
			time.Sleep(time.Millisecond)
		}
	}
	defer conn.Close()

	if conn.RemoteAddr().String() != client.LocalAddr().String() {
		t.Errorf("remote addr %s, want %s", conn.RemoteAddr(), client.LocalAddr())
	}

	if _, err := conn.Write([]byte("ok")); err != nil {
		t.Fatal(err)
	}
	_ = conn.Close()
	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	b, err := io.ReadAll(client)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "ok" {
		t.Errorf("client read %q, want %q", b, "ok")
	}
}

func TestAcceptNonBlocking_DescriptorFlags(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	rc, err := ln.(syscall.Conn).SyscallConn()
	if err != nil {
		t.Fatal(err)
	}

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	nfd := -1
	deadline := time.Now().Add(5 * time.Second)
	for nfd < 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the pending connection")
		}
		var opErr error
		if err := rc.Control(func(fd uintptr) {
			nfd, opErr = acceptNonBlocking(int(fd))
		}); err != nil {
			t.Fatal(err)
		}
		if opErr == unix.EAGAIN || opErr == unix.EINTR {
			nfd = -1
			time.Sleep(time.Millisecond)
			continue
		}
		if opErr != nil {
			t.Fatalf("accept: %v", opErr)
		}
	}
	defer unix.Close(nfd)

	fdFlags, err := unix.FcntlInt(uintptr(nfd), unix.F_GETFD, 0)
	if err != nil {
		t.Fatal(err)
	}
	if fdFlags&unix.FD_CLOEXEC == 0 {
		t.Error("accepted descriptor is not close-on-exec")
	}
	flFlags, err := unix.FcntlInt(uintptr(nfd), unix.F_GETFL, 0)
	if err != nil {
		t.Fatal(err)
	}
	if flFlags&unix.O_NONBLOCK == 0 {
		t.Error("accepted descriptor is blocking")
	}
}
