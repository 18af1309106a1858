package network

import (
	"github.com/google/uuid"
)

// ConnectionID identifies a logical connection. It carries no ownership of
// the underlying socket.
type ConnectionID uuid.UUID

// NilConnectionID is the zero identifier.
var NilConnectionID ConnectionID

// NewConnectionID returns a fresh random identifier.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New())
}

// ParseConnectionID parses the canonical textual uuid form.
func ParseConnectionID(s string) (ConnectionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilConnectionID, err
	}
	return ConnectionID(id), nil
}

// String returns the canonical uuid form.
func (id ConnectionID) String() string {
	return uuid.UUID(id).String()
}

// NetworkPacket is one application-level message: a kind discriminator and an
// opaque payload. It is immutable once built.
//
// CBOR encoding:
//
//	{
//	  1: kind,  // text string
//	  2: data   // byte string
//	}
type NetworkPacket struct {
	Kind string `cbor:"1,keyasint"`
	Data []byte `cbor:"2,keyasint"`
}

// NewPacket creates a packet of the given kind.
func NewPacket(kind string, data []byte) NetworkPacket {
	return NetworkPacket{Kind: kind, Data: data}
}

// Message is an inbound packet attributed to the connection it arrived on.
type Message struct {
	From   ConnectionID
	Packet NetworkPacket
}

// Disconnect is emitted exactly once per attached connection when its loops
// stop. Err is nil for a clean peer disconnect or local shutdown.
type Disconnect struct {
	ID  ConnectionID
	Err error
}
