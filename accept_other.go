//go:build !linux && !darwin

package asyncore

import (
	"net"
)

func newAcceptor(ln net.Listener) acceptor {
	return newGoroutineAcceptor(ln)
}
