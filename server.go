package asyncore

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/joeycumines/go-catrate"
)

// ErrNoEndpoints is returned by [NewServer] when called without endpoints.
var ErrNoEndpoints = errors.New("asyncore: server requires at least one endpoint")

// ClientHandler takes ownership of an accepted connection. It runs on the
// loop goroutine, so it must not block: typically it registers a task of
// its own to service the connection.
type ClientHandler func(conn net.Conn)

// HandshakeErrorHandler observes a failed TLS handshake. The connection is
// already closed.
type HandshakeErrorHandler func(err *HandshakeError)

// Server accepts connections from one or more endpoints, from a single task
// running at [DefaultPeriod].
//
// Each tick, every endpoint is drained of pending connections. Plain TCP
// connections are handed to the client handler immediately. TLS connections
// join the handshake queue, where they stay until the handshake succeeds
// (then they are handed over) or fails (then they are closed). No
// connection can hold up the loop, whatever its peer does.
type Server struct {
	sched            *Scheduler
	endpoints        []*Endpoint
	task             *Task
	pending          []*pendingHandshake
	onClient         ClientHandler
	onHandshakeError HandshakeErrorHandler
	limiter          *catrate.Limiter
	closed           bool
}

// pendingHandshake is a TLS connection in the handshake queue. The
// handshake itself runs on its own goroutine, as crypto/tls cannot be
// stepped.
type pendingHandshake struct {
	conn   *tls.Conn
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewServer registers the acceptor task for endpoints. Nothing is accepted
// until [Server.OnClient] is called.
func NewServer(s *Scheduler, endpoints ...*Endpoint) (*Server, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	for _, e := range endpoints {
		if e == nil {
			return nil, errors.New("asyncore: nil endpoint")
		}
	}

	srv := &Server{
		sched:     s,
		endpoints: append([]*Endpoint(nil), endpoints...),
		limiter: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}

	var err error
	srv.task, err = s.Add(srv.step, DefaultPeriod)
	if err != nil {
		return nil, err
	}

	for _, e := range endpoints {
		s.info("server").
			Str("address", e.Addr().String()).
			Bool("tls", e.TLS()).
			Log("listening")
	}

	return srv, nil
}

// OnClient sets the handler for accepted connections.
func (srv *Server) OnClient(fn ClientHandler) *Server {
	srv.onClient = fn
	return srv
}

// OnHandshakeError replaces the default handling of TLS handshake failures,
// which logs a rate limited warning per remote host. Accept failures are
// always logged, rate limited per endpoint, and retried each tick.
func (srv *Server) OnHandshakeError(fn HandshakeErrorHandler) *Server {
	srv.onHandshakeError = fn
	return srv
}

// Endpoints returns the endpoints served.
func (srv *Server) Endpoints() []*Endpoint {
	return append([]*Endpoint(nil), srv.endpoints...)
}

// Pending returns the length of the handshake queue.
func (srv *Server) Pending() int {
	return len(srv.pending)
}

// Close removes the acceptor task, closes the endpoints, and abandons the
// handshake queue, closing its connections. Connections already handed to
// the client handler are unaffected.
func (srv *Server) Close() error {
	if srv.closed {
		return ErrServerClosed
	}
	srv.closed = true
	srv.task.Remove()

	var errs []error
	for _, e := range srv.endpoints {
		errs = append(errs, e.Close())
	}
	for _, p := range srv.pending {
		p.cancel()
		errs = append(errs, p.conn.Close())
	}
	srv.pending = nil
	return errors.Join(errs...)
}

func (srv *Server) step(bool) {
	if srv.onClient == nil || srv.closed {
		return
	}

	for _, e := range srv.endpoints {
		srv.acceptAll(e)
	}

	srv.drainHandshakes()
}

func (srv *Server) acceptAll(e *Endpoint) {
	for !srv.closed {
		conn, err := e.acceptor.acceptAvailable()
		if err != nil {
			// retried next tick
			if _, ok := srv.limiter.Allow(acceptFailure{e}); ok {
				srv.sched.logError("server", "accept failed on "+e.Addr().String(), err)
			}
			return
		}
		if conn == nil {
			return
		}

		if e.tlsConfig == nil {
			srv.sched.debug("server").
				Str("remote", conn.RemoteAddr().String()).
				Log("accepted connection")
			srv.onClient(conn)
			continue
		}

		srv.startHandshake(e, conn)
	}
}

func (srv *Server) startHandshake(e *Endpoint, conn net.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), e.handshakeTimeout)
	p := &pendingHandshake{
		conn:   tls.Server(conn, e.tlsConfig),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		p.err = p.conn.HandshakeContext(ctx)
	}()
	srv.pending = append(srv.pending, p)
}

// drainHandshakes dispatches completed handshakes, in queue order.
func (srv *Server) drainHandshakes() {
	if len(srv.pending) == 0 {
		return
	}

	var completed []*pendingHandshake
	remaining := srv.pending[:0]
	for _, p := range srv.pending {
		select {
		case <-p.done:
			p.cancel()
			completed = append(completed, p)
		default:
			remaining = append(remaining, p)
		}
	}
	for i := len(remaining); i < len(srv.pending); i++ {
		srv.pending[i] = nil
	}
	srv.pending = remaining

	for _, p := range completed {
		if srv.closed {
			_ = p.conn.Close()
			continue
		}
		if p.err != nil {
			srv.handshakeFailed(p)
			continue
		}
		srv.sched.debug("server").
			Str("remote", p.conn.RemoteAddr().String()).
			Log("tls handshake completed")
		srv.onClient(p.conn)
	}
}

func (srv *Server) handshakeFailed(p *pendingHandshake) {
	_ = p.conn.Close()
	herr := &HandshakeError{Cause: p.err, Remote: p.conn.RemoteAddr()}

	if srv.onHandshakeError != nil {
		srv.onHandshakeError(herr)
		return
	}

	host := remoteHost(herr.Remote)
	if _, ok := srv.limiter.Allow(host); !ok {
		return
	}
	srv.sched.warning("server").
		Str("remote", host).
		Err(herr.Cause).
		Log("tls handshake failed")
}

// acceptFailure keys the accept error rate limit of one endpoint.
type acceptFailure struct {
	endpoint *Endpoint
}

func remoteHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
