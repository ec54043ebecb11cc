package asyncore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaster_ReceivesUntilEOF(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	var out bytes.Buffer
	var got []any
	m, err := NewMaster(s, func(v any) {
		got = append(got, v)
	},
		WithMasterInput(strings.NewReader("\x00[1]\x00noise\x00\"two\"\x00\x00{\"partial\"")),
		WithMasterOutput(&out),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))

	assert.Equal(t, []any{[]any{float64(1)}, "two"}, got)
	// stray bytes go back out as diagnostics
	assert.Equal(t, "noise", out.String())
	assert.True(t, m.task.Removed())
}

func TestMaster_Send(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	var out bytes.Buffer
	m, err := NewMaster(s, nil,
		WithMasterInput(strings.NewReader("")),
		WithMasterOutput(&out),
		WithMasterDiagnostics(io.Discard),
		WithMasterCodec(YAMLCodec{}),
	)
	require.NoError(t, err)

	require.NoError(t, m.Send(map[string]int{"sum": 3}))
	require.NoError(t, m.Send(4))
	assert.Equal(t, "\x00sum: 3\n\x00\x004\n\x00", out.String())

	assert.Error(t, m.Send(make(chan int)))
}

func TestMaster_Close(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	pr, pw := io.Pipe()
	defer pw.Close()

	m, err := NewMaster(s, nil, WithMasterInput(pr), WithMasterOutput(io.Discard))
	require.NoError(t, err)

	_, err = s.Timeout(m.Close, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
}

func TestMaster_RoundTripThroughWorkerFraming(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	// what a Worker writes is what a Master reads
	var wire []byte
	for _, v := range []any{[]any{"add", 1, 2}, []any{"stop"}} {
		wire, err = encodeFrame(wire, JSONCodec{}, v)
		require.NoError(t, err)
	}

	var got []any
	_, err = NewMaster(s, func(v any) { got = append(got, v) },
		WithMasterInput(bytes.NewReader(wire)),
		WithMasterOutput(io.Discard),
	)
	require.NoError(t, err)
	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, []any{
		[]any{"add", float64(1), float64(2)},
		[]any{"stop"},
	}, got)
}
