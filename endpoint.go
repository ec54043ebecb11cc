package asyncore

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// DefaultHandshakeTimeout bounds a single TLS handshake.
const DefaultHandshakeTimeout = 10 * time.Second

// EndpointOption configures [Listen].
type EndpointOption func(*endpointOptions)

type endpointOptions struct {
	tlsConfig        *tls.Config
	certFile         string
	keyFile          string
	handshakeTimeout time.Duration
}

// WithCertificateFiles enables TLS, using a PEM encoded certificate (chain)
// and private key. Both must be set.
func WithCertificateFiles(certFile, keyFile string) EndpointOption {
	return func(o *endpointOptions) {
		o.certFile = certFile
		o.keyFile = keyFile
	}
}

// WithTLSConfig enables TLS with the given configuration, which must carry
// at least one certificate (or a certificate callback). It takes precedence
// over [WithCertificateFiles].
func WithTLSConfig(config *tls.Config) EndpointOption {
	return func(o *endpointOptions) {
		o.tlsConfig = config
	}
}

// WithHandshakeTimeout bounds each TLS handshake on the endpoint.
func WithHandshakeTimeout(d time.Duration) EndpointOption {
	return func(o *endpointOptions) {
		o.handshakeTimeout = d
	}
}

// Endpoint is a listening TCP socket, optionally serving TLS.
type Endpoint struct {
	ln               net.Listener
	acceptor         acceptor
	tlsConfig        *tls.Config
	handshakeTimeout time.Duration
	closeOnce        sync.Once
	closeErr         error
}

// Listen creates a listening endpoint on a TCP address, e.g. "127.0.0.1:0".
func Listen(address string, opts ...EndpointOption) (*Endpoint, error) {
	cfg := &endpointOptions{handshakeTimeout: DefaultHandshakeTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.handshakeTimeout <= 0 {
		return nil, fmt.Errorf("asyncore: invalid handshake timeout %v", cfg.handshakeTimeout)
	}

	tlsConfig := cfg.tlsConfig
	if tlsConfig == nil && (cfg.certFile != "" || cfg.keyFile != "") {
		if cfg.certFile == "" || cfg.keyFile == "" {
			return nil, errors.New("asyncore: tls requires both a certificate and a key file")
		}
		cert, err := tls.LoadX509KeyPair(cfg.certFile, cfg.keyFile)
		if err != nil {
			return nil, fmt.Errorf("asyncore: loading key pair: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	return &Endpoint{
		ln:               ln,
		acceptor:         newAcceptor(ln),
		tlsConfig:        tlsConfig,
		handshakeTimeout: cfg.handshakeTimeout,
	}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (e *Endpoint) Addr() net.Addr {
	return e.ln.Addr()
}

// TLS reports whether accepted connections are TLS.
func (e *Endpoint) TLS() bool {
	return e.tlsConfig != nil
}

// Close stops listening. It is idempotent.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closeErr = errors.Join(e.acceptor.close(), e.ln.Close())
	})
	return e.closeErr
}

// acceptor accepts without blocking, returning a nil conn when no
// connection is pending.
type acceptor interface {
	acceptAvailable() (net.Conn, error)
	close() error
}

// goroutineAcceptor runs blocking accepts on a dedicated goroutine.
type goroutineAcceptor struct {
	ch   chan acceptResult
	done chan struct{}
	err  error
	once sync.Once
}

type acceptResult struct {
	conn net.Conn
	err  error
}

func newGoroutineAcceptor(ln net.Listener) *goroutineAcceptor {
	x := &goroutineAcceptor{
		ch:   make(chan acceptResult, 16),
		done: make(chan struct{}),
	}
	go func() {
		for {
			conn, err := ln.Accept()
			select {
			case x.ch <- acceptResult{conn: conn, err: err}:
			case <-x.done:
				if conn != nil {
					_ = conn.Close()
				}
				return
			}
			if err != nil {
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					continue
				}
				return
			}
		}
	}()
	return x
}

func (x *goroutineAcceptor) acceptAvailable() (net.Conn, error) {
	if x.err != nil {
		return nil, x.err
	}
	select {
	case res := <-x.ch:
		if res.err != nil {
			x.err = res.err
		}
		return res.conn, res.err
	default:
		return nil, nil
	}
}

func (x *goroutineAcceptor) close() error {
	x.once.Do(func() { close(x.done) })
	return nil
}
