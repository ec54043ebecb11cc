package asyncore

import (
	"bytes"
	"io"
)

// frameDelimiter opens and closes every frame on the worker channel.
const frameDelimiter = 0x00

// AppendFrame appends payload, wrapped in delimiters, to dst.
func AppendFrame(dst, payload []byte) ([]byte, error) {
	if bytes.IndexByte(payload, frameDelimiter) >= 0 {
		return dst, ErrPayloadContainsNUL
	}
	dst = append(dst, frameDelimiter)
	dst = append(dst, payload...)
	dst = append(dst, frameDelimiter)
	return dst, nil
}

// FrameDecoder splits a byte stream into NUL-delimited frames.
//
// State machine:
//
//	OUTSIDE --NUL--> INSIDE   [bytes before the NUL go to the passthrough]
//	INSIDE  --NUL--> OUTSIDE  [accumulated payload is emitted]
//
// State carries across calls to Feed, so frames may straddle chunks and one
// chunk may carry several frames.
type FrameDecoder struct {
	passthrough io.Writer
	onFrame     func(payload []byte)
	acc         []byte
	inside      bool
}

// NewFrameDecoder returns a decoder in the OUTSIDE state. Out-of-frame bytes
// are written to passthrough, which may be nil to discard them. onFrame
// receives each completed payload; the slice is only valid for the duration
// of the call.
func NewFrameDecoder(passthrough io.Writer, onFrame func(payload []byte)) *FrameDecoder {
	return &FrameDecoder{
		passthrough: passthrough,
		onFrame:     onFrame,
	}
}

// Feed consumes one chunk.
func (d *FrameDecoder) Feed(chunk []byte) {
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, frameDelimiter)
		if !d.inside {
			if i < 0 {
				d.pass(chunk)
				return
			}
			d.pass(chunk[:i])
			d.inside = true
			d.acc = d.acc[:0]
			chunk = chunk[i+1:]
			continue
		}
		if i < 0 {
			d.acc = append(d.acc, chunk...)
			return
		}
		d.acc = append(d.acc, chunk[:i]...)
		d.inside = false
		chunk = chunk[i+1:]
		if d.onFrame != nil {
			d.onFrame(d.acc)
		}
		d.acc = d.acc[:0]
	}
}

// Inside reports whether a frame has been opened but not yet closed.
func (d *FrameDecoder) Inside() bool {
	return d.inside
}

// Discard drops any partial frame, returning the number of bytes dropped.
func (d *FrameDecoder) Discard() int {
	n := len(d.acc)
	d.acc = d.acc[:0]
	d.inside = false
	return n
}

func (d *FrameDecoder) pass(b []byte) {
	if len(b) == 0 || d.passthrough == nil {
		return
	}
	// diagnostics are best effort
	_, _ = d.passthrough.Write(b)
}
