package asyncore

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// acceptNonBlocking accepts a pending connection as a non-blocking,
// close-on-exec descriptor. There is no accept4, so ForkLock is held until
// close-on-exec is set.
func acceptNonBlocking(fd int) (int, error) {
	syscall.ForkLock.RLock()
	nfd, _, err := unix.Accept(fd)
	if err == nil {
		unix.CloseOnExec(nfd)
	}
	syscall.ForkLock.RUnlock()
	if err != nil {
		return -1, err
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		_ = unix.Close(nfd)
		return -1, err
	}
	return nfd, nil
}
