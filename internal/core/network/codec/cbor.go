// Package codec provides the binary codec used by the framing protocol.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/zeusync/eventnet/internal/core/network"
)

// encMode is configured for deterministic output.
var encMode cbor.EncMode

// decMode rejects anything that a well-behaved encoder would not produce.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.CoreDetEncOptions()
	encOpts.NilContainers = cbor.NilContainerAsNull
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

var _ network.Codec = CBOR{}

// CBOR implements network.Codec with canonical CBOR. It is stateless.
type CBOR struct{}

// NewCBOR returns the deterministic CBOR codec.
func NewCBOR() CBOR {
	return CBOR{}
}

// Serialize encodes v using core deterministic encoding.
func (CBOR) Serialize(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, network.SerializationError(err)
	}
	return data, nil
}

// Deserialize decodes exactly one data item; trailing bytes are an error.
func (CBOR) Deserialize(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return network.SerializationError(err)
	}
	return nil
}

// Serialize encodes value with c and returns the bytes.
func Serialize[T any](c network.Codec, value T) ([]byte, error) {
	return c.Serialize(value)
}

// Deserialize decodes data into a new T.
func Deserialize[T any](c network.Codec, data []byte) (T, error) {
	var value T
	if err := c.Deserialize(data, &value); err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}
