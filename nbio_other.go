//go:build !linux && !darwin

package asyncore

import (
	"io"
)

func newRawReader(io.Reader) (nonBlockingReader, bool) {
	return nil, false
}

func newRawWriter(io.Writer) (nonBlockingWriter, bool) {
	return nil, false
}
