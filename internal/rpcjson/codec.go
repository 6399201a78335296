// Package rpcjson lets the Registry and Anomaly Scorer gRPC services speak
// plain Go structs over the wire instead of generated protobuf messages. It
// implements grpc's encoding.Codec using encoding/json, registered under
// the content-subtype "json" so real gRPC transport, deadlines, and status
// codes are preserved while messages stay ordinary structs (no protoc
// toolchain is available to regenerate .pb.go stubs for this module).
package rpcjson

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype under which this codec is registered;
// requests made with grpc.CallContentSubtype(Name) on the client are
// decoded by this codec on the server, and vice versa.
const Name = "json"

type codec struct{}

// Marshal encodes v as JSON. v is expected to be a pointer to a plain Go
// struct, per this package's convention of one request/response struct per
// RPC method.
func (codec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpcjson: marshal %T: %w", v, err)
	}
	return b, nil
}

// Unmarshal decodes JSON data into v, which must be a pointer.
func (codec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("rpcjson: unmarshal into %T: %w", v, err)
	}
	return nil
}

func (codec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(codec{})
}
