package asyncore

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Codec serializes worker channel messages. Encoded payloads must not
// contain NUL bytes, see [AppendFrame].
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v *any) error
}

// JSONCodec is the default [Codec]. Numbers decode as float64.
type JSONCodec struct{}

// Marshal implements [Codec].
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements [Codec].
func (JSONCodec) Unmarshal(data []byte, v *any) error {
	return json.Unmarshal(data, v)
}

// YAMLCodec encodes messages as YAML documents. Integers decode as int.
type YAMLCodec struct{}

// Marshal implements [Codec]. Values yaml.v3 cannot represent, e.g.
// channels, are reported as errors.
func (YAMLCodec) Marshal(v any) (b []byte, err error) {
	defer recoverYAML(&err)
	return yaml.Marshal(v)
}

// Unmarshal implements [Codec].
func (YAMLCodec) Unmarshal(data []byte, v *any) (err error) {
	defer recoverYAML(&err)
	return yaml.Unmarshal(data, v)
}

// recoverYAML converts a yaml.v3 panic into an error.
func recoverYAML(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = fmt.Errorf("asyncore: yaml: %w", e)
			return
		}
		*err = fmt.Errorf("asyncore: yaml: %v", r)
	}
}

// encodeFrame marshals v with codec and appends the framed result to dst.
func encodeFrame(dst []byte, codec Codec, v any) ([]byte, error) {
	payload, err := codec.Marshal(v)
	if err != nil {
		return dst, err
	}
	return AppendFrame(dst, payload)
}

// decodeFrame unmarshals a completed payload, wrapping failures as
// [*FrameError].
func decodeFrame(codec Codec, payload []byte) (any, error) {
	var v any
	if err := codec.Unmarshal(payload, &v); err != nil {
		return nil, &FrameError{Cause: err, Payload: append([]byte(nil), payload...)}
	}
	return v, nil
}
