package asyncore

import (
	"golang.org/x/sys/unix"
)

// acceptNonBlocking accepts a pending connection as a non-blocking,
// close-on-exec descriptor.
func acceptNonBlocking(fd int) (int, error) {
	nfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	return nfd, err
}
