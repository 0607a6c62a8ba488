package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec frames envelopes as a big-endian uint32 length followed by a
// protobuf encoded google.protobuf.Struct.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Encode(w io.Writer, env *Envelope) error {
	data, err := c.Marshal(env)
	if err != nil {
		return err
	}

	var frame bytes.Buffer
	frame.Grow(4 + len(data))
	if err := binary.Write(&frame, binary.BigEndian, uint32(len(data))); err != nil {
		return err
	}
	frame.Write(data)

	_, err = w.Write(frame.Bytes())
	return err
}

func (c *Codec) Decode(r io.Reader) (*Envelope, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > MaxEnvelopeSize {
		return nil, fmt.Errorf("envelope too large: %d bytes", length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read envelope: %w", err)
	}
	return c.Unmarshal(data)
}

func (c *Codec) Marshal(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("nil envelope")
	}
	if !env.Action.Valid() {
		return nil, fmt.Errorf("unknown action %q", env.Action)
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	st := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, st); err != nil {
		return nil, fmt.Errorf("failed to build envelope struct: %w", err)
	}
	return proto.Marshal(st)
}

func (c *Codec) Unmarshal(data []byte) (*Envelope, error) {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("protobuf unmarshal error: %w", err)
	}

	raw, err := protojson.Marshal(st)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if !env.Action.Valid() {
		return nil, fmt.Errorf("unknown action %q", env.Action)
	}
	return &env, nil
}
