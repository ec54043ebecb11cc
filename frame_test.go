package asyncore

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

type frameRecorder struct {
	passthrough bytes.Buffer
	frames      []string
}

func (r *frameRecorder) decoder() *FrameDecoder {
	return NewFrameDecoder(&r.passthrough, func(payload []byte) {
		r.frames = append(r.frames, string(payload))
	})
}

func (r *frameRecorder) check(t *testing.T, frames []string, passthrough string) {
	t.Helper()
	if (len(frames) != 0 || len(r.frames) != 0) && !reflect.DeepEqual(r.frames, frames) {
		t.Errorf("frames: got %q, want %q", r.frames, frames)
	}
	if got := r.passthrough.String(); got != passthrough {
		t.Errorf("passthrough: got %q, want %q", got, passthrough)
	}
}

func TestAppendFrame(t *testing.T) {
	b, err := AppendFrame(nil, []byte(`[1,2]`))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "\x00[1,2]\x00" {
		t.Errorf("unexpected frame %q", b)
	}

	b, err = AppendFrame(b, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "\x00[1,2]\x00\x00\x00" {
		t.Errorf("unexpected frames %q", b)
	}

	if _, err := AppendFrame(nil, []byte("a\x00b")); !errors.Is(err, ErrPayloadContainsNUL) {
		t.Errorf("expected ErrPayloadContainsNUL, got %v", err)
	}
}

func TestFrameDecoder_SingleChunk(t *testing.T) {
	var r frameRecorder
	d := r.decoder()

	d.Feed([]byte("hello\x00one\x00 between \x00two\x00tail"))

	r.check(t, []string{"one", "two"}, "hello between tail")
	if d.Inside() {
		t.Error("decoder should be outside a frame")
	}
}

func TestFrameDecoder_StraddlesChunks(t *testing.T) {
	var r frameRecorder
	d := r.decoder()

	steps := []struct {
		chunk  string
		inside bool
	}{
		{"pre\x00par", true},
		{"tial", true},
		{"\x00", false},
		{"\x00x\x00\x00", true},
	}
	for i, step := range steps {
		d.Feed([]byte(step.chunk))
		if d.Inside() != step.inside {
			t.Errorf("step %d: Inside() = %v, want %v", i, d.Inside(), step.inside)
		}
	}

	r.check(t, []string{"partial", "x"}, "pre")
}

func TestFrameDecoder_ByteAtATime(t *testing.T) {
	var r frameRecorder
	d := r.decoder()

	var stream []byte
	for _, s := range []string{`"a"`, `{"k":1}`, `[]`} {
		var err error
		if stream, err = AppendFrame(stream, []byte(s)); err != nil {
			t.Fatal(err)
		}
		stream = append(stream, '\n')
	}
	for i := range stream {
		d.Feed(stream[i : i+1])
	}

	r.check(t, []string{`"a"`, `{"k":1}`, `[]`}, "\n\n\n")
}

func TestFrameDecoder_EmptyFrame(t *testing.T) {
	var r frameRecorder
	d := r.decoder()
	d.Feed([]byte("\x00\x00"))
	r.check(t, []string{""}, "")
}

func TestFrameDecoder_Discard(t *testing.T) {
	var r frameRecorder
	d := r.decoder()

	d.Feed([]byte("\x00abc"))
	if n := d.Discard(); n != 3 {
		t.Errorf("Discard() = %d, want 3", n)
	}
	if d.Inside() {
		t.Error("decoder should be outside a frame after Discard")
	}

	d.Feed([]byte("out\x00in\x00"))
	r.check(t, []string{"in"}, "out")
}

func TestFrameDecoder_NilPassthrough(t *testing.T) {
	var frames int
	d := NewFrameDecoder(nil, func([]byte) { frames++ })
	d.Feed([]byte("noise\x00f\x00noise"))
	if frames != 1 {
		t.Errorf("got %d frames, want 1", frames)
	}
}
