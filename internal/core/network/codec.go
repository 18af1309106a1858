package network

// Codec converts values to and from opaque byte sequences. Implementations
// must be deterministic, must not keep shared mutable state, and must report
// malformed input as a KindSerialization error instead of panicking.
// Deserialize must not retain data after it returns: callers reuse the buffer.
type Codec interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, v any) error
}
