package transport

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// gobCodec is a grpc-go encoding.Codec that marshals with encoding/gob
// instead of protobuf. Generating protobuf bindings requires protoc and a
// .proto source, neither available here; the content-subtype mechanism
// (RFC: grpc.CallContentSubtype) is a documented, supported way to swap the
// wire codec per-call without protobuf ever entering the picture.
type gobCodec struct{}

const codecName = "gob"

func init() {
	encoding.RegisterCodec(gobCodec{})
}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string {
	return codecName
}
