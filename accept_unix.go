//go:build linux || darwin

package asyncore

import (
	"errors"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// rawAcceptor calls accept(2) directly on the listener's descriptor, which
// the runtime keeps in non-blocking mode. A listener's RawConn only
// supports Control, so the accept runs there.
type rawAcceptor struct {
	rc syscall.RawConn
}

func newAcceptor(ln net.Listener) acceptor {
	if sc, ok := ln.(syscall.Conn); ok {
		if rc, err := sc.SyscallConn(); err == nil {
			return &rawAcceptor{rc: rc}
		}
	}
	return newGoroutineAcceptor(ln)
}

func (x *rawAcceptor) acceptAvailable() (net.Conn, error) {
	var (
		nfd   = -1
		opErr error
	)
	err := x.rc.Control(func(fd uintptr) {
		for {
			nfd, opErr = acceptNonBlocking(int(fd))
			if opErr != unix.EINTR {
				break
			}
		}
	})
	if err != nil {
		return nil, err
	}
	switch {
	case errors.Is(opErr, unix.EAGAIN), errors.Is(opErr, unix.EWOULDBLOCK), errors.Is(opErr, unix.ECONNABORTED):
		return nil, nil
	case opErr != nil:
		return nil, os.NewSyscallError("accept", opErr)
	}

	// FileConn dups the descriptor
	f := os.NewFile(uintptr(nfd), "tcp")
	conn, err := net.FileConn(f)
	_ = f.Close()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (x *rawAcceptor) close() error {
	return nil
}
