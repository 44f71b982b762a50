package protocol

import "encoding/json"

// Serializer defines the contract for serializing and deserializing command payloads.
// This allows upstream producers to choose their preferred format
// while interacting with the gateway.
type Serializer interface {
	// Marshal serializes a Go struct (e.g. OrderCommand) into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal deserializes bytes into a Go struct.
	// v must be a pointer to the target struct.
	Unmarshal(data []byte, v any) error
}

// DefaultJSONSerializer encodes payloads as JSON.
type DefaultJSONSerializer struct{}

func (DefaultJSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (DefaultJSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
