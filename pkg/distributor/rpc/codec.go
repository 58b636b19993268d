// Package rpc implements the distributor's control-plane transport: the
// four operations (Apply, Status, Rollback, Subscribe) the distributor
// calls against each enforcement instance, carried over a real
// google.golang.org/grpc connection.
//
// The service definition here is hand-written rather than protoc-generated:
// messages are plain JSON-tagged Go structs and wire encoding goes through a
// custom grpc codec (codecName below) instead of protobuf. This keeps the
// real grpc.Server/grpc.ClientConn transport, framing, deadlines, and
// streaming semantics the spec calls for, without requiring the protobuf
// toolchain to generate .pb.go stubs.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "eunomia-json"

// jsonCodec implements google.golang.org/grpc/encoding.Codec, so a plain
// JSON-tagged struct can travel over a grpc.ClientConn/grpc.Server in place
// of a protobuf-generated message.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
