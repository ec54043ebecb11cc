//go:build linux || darwin

package asyncore

import (
	"errors"
	"io"
	"syscall"

	"golang.org/x/sys/unix"
)

// rawReader polls the descriptor with a zero timeout before reading, so it
// never blocks, even on descriptors left in blocking mode (e.g. an inherited
// stdin, whose flags are shared with other processes).
type rawReader struct {
	c  io.Closer
	rc syscall.RawConn
}

func newRawReader(r io.Reader) (nonBlockingReader, bool) {
	rc, ok := rawConnOf(r)
	if !ok {
		return nil, false
	}
	x := &rawReader{rc: rc}
	x.c, _ = r.(io.Closer)
	return x, true
}

func (x *rawReader) readAvailable(p []byte) (int, error) {
	var (
		n     int
		opErr error
		ready bool
	)
	err := x.rc.Read(func(fd uintptr) bool {
		ready, opErr = pollFD(int(fd), unix.POLLIN)
		if opErr != nil || !ready {
			return true
		}
		for {
			n, opErr = unix.Read(int(fd), p)
			if opErr != unix.EINTR {
				break
			}
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	switch {
	case errors.Is(opErr, unix.EAGAIN), errors.Is(opErr, unix.EWOULDBLOCK):
		return 0, nil
	case opErr != nil:
		return 0, opErr
	case !ready:
		return 0, nil
	case n <= 0:
		return 0, io.EOF
	}
	return n, nil
}

func (x *rawReader) close() error {
	if x.c != nil {
		return x.c.Close()
	}
	return nil
}

type rawWriter struct {
	c  io.Closer
	rc syscall.RawConn
}

func newRawWriter(w io.Writer) (nonBlockingWriter, bool) {
	rc, ok := rawConnOf(w)
	if !ok {
		return nil, false
	}
	x := &rawWriter{rc: rc}
	x.c, _ = w.(io.Closer)
	return x, true
}

func (x *rawWriter) writeAvailable(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var (
		n     int
		opErr error
		ready bool
	)
	err := x.rc.Write(func(fd uintptr) bool {
		ready, opErr = pollFD(int(fd), unix.POLLOUT)
		if opErr != nil || !ready {
			return true
		}
		for {
			n, opErr = unix.Write(int(fd), p)
			if opErr != unix.EINTR {
				break
			}
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	switch {
	case errors.Is(opErr, unix.EAGAIN), errors.Is(opErr, unix.EWOULDBLOCK):
		return 0, nil
	case opErr != nil:
		return 0, opErr
	case !ready || n < 0:
		return 0, nil
	}
	return n, nil
}

func (x *rawWriter) close() error {
	if x.c != nil {
		return x.c.Close()
	}
	return nil
}

func rawConnOf(v any) (syscall.RawConn, bool) {
	sc, ok := v.(syscall.Conn)
	if !ok {
		return nil, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, false
	}
	return rc, true
}

// pollFD reports whether fd is ready for events, without waiting. Hangup
// and error conditions count as ready, so the following syscall reports
// them.
func pollFD(fd int, events int16) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents != 0, nil
	}
}
