package asyncore

import (
	"io"
	"sync"
)

// readChunkSize bounds a single non-blocking read.
const readChunkSize = 8192

// nonBlockingReader reads whatever is available without blocking. It
// returns (0, nil) when nothing is available, and io.EOF once the stream
// has ended.
type nonBlockingReader interface {
	readAvailable(p []byte) (int, error)
	close() error
}

// nonBlockingWriter writes as much of p as can be written without blocking.
type nonBlockingWriter interface {
	writeAvailable(p []byte) (int, error)
	close() error
}

// newNonBlockingReader prefers direct non-blocking reads on the underlying
// descriptor, falling back to a goroutine pump for arbitrary readers.
func newNonBlockingReader(r io.Reader) nonBlockingReader {
	if nb, ok := newRawReader(r); ok {
		return nb
	}
	return newPumpReader(r)
}

func newNonBlockingWriter(w io.Writer) nonBlockingWriter {
	if nb, ok := newRawWriter(w); ok {
		return nb
	}
	return newPumpWriter(w)
}

type readResult struct {
	err error
	b   []byte
}

// pumpReader runs blocking reads on a dedicated goroutine.
type pumpReader struct {
	r        io.Reader
	ch       chan readResult
	done     chan struct{}
	leftover []byte
	err      error
	once     sync.Once
}

func newPumpReader(r io.Reader) *pumpReader {
	x := &pumpReader{
		r:    r,
		ch:   make(chan readResult, 16),
		done: make(chan struct{}),
	}
	go x.pump()
	return x
}

func (x *pumpReader) pump() {
	for {
		buf := make([]byte, readChunkSize)
		n, err := x.r.Read(buf)
		if n > 0 {
			select {
			case x.ch <- readResult{b: buf[:n]}:
			case <-x.done:
				return
			}
		}
		if err != nil {
			select {
			case x.ch <- readResult{err: err}:
			case <-x.done:
			}
			return
		}
	}
}

func (x *pumpReader) readAvailable(p []byte) (int, error) {
	if len(x.leftover) == 0 {
		if x.err != nil {
			return 0, x.err
		}
		select {
		case res := <-x.ch:
			if res.err != nil {
				x.err = res.err
				return 0, res.err
			}
			x.leftover = res.b
		default:
			return 0, nil
		}
	}
	n := copy(p, x.leftover)
	x.leftover = x.leftover[n:]
	return n, nil
}

func (x *pumpReader) close() error {
	x.once.Do(func() { close(x.done) })
	if c, ok := x.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// pumpWriter hands writes to a dedicated goroutine, accepting only while
// its queue has room.
type pumpWriter struct {
	w    io.Writer
	ch   chan []byte
	done chan struct{}
	mu   sync.Mutex
	err  error
	once sync.Once
}

func newPumpWriter(w io.Writer) *pumpWriter {
	x := &pumpWriter{
		w:    w,
		ch:   make(chan []byte, 16),
		done: make(chan struct{}),
	}
	go x.pump()
	return x
}

func (x *pumpWriter) pump() {
	for {
		select {
		case b := <-x.ch:
			if _, err := x.w.Write(b); err != nil {
				x.mu.Lock()
				x.err = err
				x.mu.Unlock()
				return
			}
		case <-x.done:
			return
		}
	}
}

func (x *pumpWriter) writeAvailable(p []byte) (int, error) {
	x.mu.Lock()
	err := x.err
	x.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	select {
	case x.ch <- append([]byte(nil), p...):
		return len(p), nil
	default:
		return 0, nil
	}
}

func (x *pumpWriter) close() error {
	x.once.Do(func() { close(x.done) })
	if c, ok := x.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
