package asyncore

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readAll polls r until EOF, failing the test on any other error.
func readAll(t *testing.T, r nonBlockingReader) string {
	t.Helper()
	var out []byte
	buf := make([]byte, 3)
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		n, err := r.readAvailable(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			return string(out)
		}
		require.NoError(t, err)
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	t.Fatal("timed out waiting for EOF")
	return ""
}

func TestPumpReader(t *testing.T) {
	pr, pw := io.Pipe()
	r := newNonBlockingReader(pr)
	_, ok := r.(*pumpReader)
	require.True(t, ok)
	defer r.close()

	n, err := r.readAvailable(make([]byte, 8))
	assert.Zero(t, n)
	assert.NoError(t, err)

	go func() {
		_, _ = pw.Write([]byte("hello "))
		_, _ = pw.Write([]byte("world"))
		_ = pw.Close()
	}()
	assert.Equal(t, "hello world", readAll(t, r))

	// EOF is sticky
	_, err = r.readAvailable(make([]byte, 8))
	assert.Equal(t, io.EOF, err)
}

func TestPumpWriter(t *testing.T) {
	pr, pw := io.Pipe()
	w := newNonBlockingWriter(pw)
	_, ok := w.(*pumpWriter)
	require.True(t, ok)

	n, err := w.writeAvailable([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	b := make([]byte, 3)
	_, err = io.ReadFull(pr, b)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))

	require.NoError(t, w.close())
}

func TestRawPipe(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)

	r := newNonBlockingReader(pr)
	w := newNonBlockingWriter(pw)
	defer r.close()

	// nothing written yet, and no blocking
	n, err := r.readAvailable(make([]byte, 8))
	assert.Zero(t, n)
	assert.NoError(t, err)

	n, err = w.writeAvailable([]byte("ping pong"))
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	n, err = w.writeAvailable(nil)
	assert.Zero(t, n)
	assert.NoError(t, err)
	require.NoError(t, w.close())

	assert.Equal(t, "ping pong", readAll(t, r))
}
