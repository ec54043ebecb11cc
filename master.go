package asyncore

import (
	"io"
	"os"
)

// MasterOption configures [NewMaster].
type MasterOption func(*masterOptions)

type masterOptions struct {
	input       io.Reader
	output      io.Writer
	diagnostics io.Writer
	codec       Codec
}

// WithMasterInput sets the stream messages are read from. Defaults to
// os.Stdin.
func WithMasterInput(r io.Reader) MasterOption {
	return func(o *masterOptions) {
		o.input = r
	}
}

// WithMasterOutput sets the stream messages are written to. Defaults to
// os.Stderr.
func WithMasterOutput(w io.Writer) MasterOption {
	return func(o *masterOptions) {
		o.output = w
	}
}

// WithMasterDiagnostics sets the destination of input bytes received
// outside of frames. Defaults to the output stream, which the parent passes
// through as diagnostics.
func WithMasterDiagnostics(w io.Writer) MasterOption {
	return func(o *masterOptions) {
		o.diagnostics = w
	}
}

// WithMasterCodec sets the message codec, see [WithCodec].
func WithMasterCodec(codec Codec) MasterOption {
	return func(o *masterOptions) {
		if codec != nil {
			o.codec = codec
		}
	}
}

// Master is the child side of a worker channel: it receives messages on
// standard input and sends them on standard error, leaving standard output
// free for text.
type Master struct {
	sched     *Scheduler
	input     nonBlockingReader
	output    io.Writer
	codec     Codec
	onMessage MessageHandler
	decoder   *FrameDecoder
	task      *Task
	readBuf   []byte
	outbuf    []byte
}

// NewMaster installs a task, at [DefaultPeriod], that dispatches messages
// from the parent to onMessage. The task removes itself once the parent
// closes the channel, so a child with no other work stops running.
func NewMaster(s *Scheduler, onMessage MessageHandler, opts ...MasterOption) (*Master, error) {
	cfg := &masterOptions{
		input:  os.Stdin,
		output: os.Stderr,
		codec:  JSONCodec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	if cfg.diagnostics == nil {
		cfg.diagnostics = cfg.output
	}

	m := &Master{
		sched:     s,
		input:     newNonBlockingReader(cfg.input),
		output:    cfg.output,
		codec:     cfg.codec,
		onMessage: onMessage,
		readBuf:   make([]byte, readChunkSize),
	}
	m.decoder = NewFrameDecoder(cfg.diagnostics, m.handleFrame)

	var err error
	m.task, err = s.Add(m.poll, DefaultPeriod)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Send encodes v and writes it to the parent.
func (m *Master) Send(v any) error {
	buf, err := encodeFrame(m.outbuf[:0], m.codec, v)
	if err != nil {
		return err
	}
	m.outbuf = buf
	_, err = m.output.Write(buf)
	return err
}

// Close removes the reader task. The input stream is left open.
func (m *Master) Close() {
	m.task.Remove()
}

func (m *Master) poll(bool) {
	for i := 0; i < maxReadsPerTick && !m.task.Removed(); i++ {
		n, err := m.input.readAvailable(m.readBuf)
		if n > 0 {
			m.decoder.Feed(m.readBuf[:n])
		}
		if err != nil {
			if err != io.EOF {
				m.sched.logError("master", "read failed", err)
			}
			if m.decoder.Inside() {
				m.sched.warning("master").
					Int("bytes", m.decoder.Discard()).
					Log("discarded incomplete frame")
			}
			m.sched.debug("master").Log("parent closed the channel")
			m.task.Remove()
			return
		}
		if n == 0 {
			return
		}
	}
}

func (m *Master) handleFrame(payload []byte) {
	v, err := decodeFrame(m.codec, payload)
	if err != nil {
		m.sched.logError("master", "dropped corrupt frame", err)
		return
	}
	if m.onMessage != nil {
		m.onMessage(v)
	}
}
