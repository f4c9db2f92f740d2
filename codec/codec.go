// Package codec defines the serialization interface used for range-query
// signatures and compressed cache payloads.
package codec

// Codec encodes and decodes values.
//
// Implementations must be deterministic for identical inputs: range-cache
// keys are derived by hashing the encoded form, so two equal queries must
// produce identical bytes.
type Codec interface {
	// Marshal encodes the value.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error

	// Name returns the unique name of the codec.
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = GoJSON{}
