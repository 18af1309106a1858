package network

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies every failure produced by the transport layer.
type Kind uint8

const (
	KindUnknown Kind = iota

	// Establishment failures, surfaced synchronously to the caller.

	KindAccept
	KindListen
	KindConnect
	KindHTTP

	// Registry failures.

	KindConnectionNotFound
	KindChannelClosed
	KindSend

	// Session failures, handled inside the recv and send loops.

	KindSerialization
	KindIO
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindAccept:
		return "accept"
	case KindListen:
		return "listen"
	case KindConnect:
		return "connect"
	case KindHTTP:
		return "http"
	case KindConnectionNotFound:
		return "connection not found"
	case KindChannelClosed:
		return "channel closed"
	case KindSend:
		return "send"
	case KindSerialization:
		return "serialization"
	case KindIO:
		return "io"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching by kind.
var (
	ErrAccept             = &Error{Kind: KindAccept}
	ErrListen             = &Error{Kind: KindListen}
	ErrConnect            = &Error{Kind: KindConnect}
	ErrHTTP               = &Error{Kind: KindHTTP}
	ErrConnectionNotFound = &Error{Kind: KindConnectionNotFound}
	ErrChannelClosed      = &Error{Kind: KindChannelClosed}
	ErrSend               = &Error{Kind: KindSend}
	ErrSerialization      = &Error{Kind: KindSerialization}
	ErrIO                 = &Error{Kind: KindIO}
	ErrProtocol           = &Error{Kind: KindProtocol}
)

// Error is the single error type of the transport layer. Only the fields
// relevant to Kind are populated.
type Error struct {
	Kind Kind

	// ConnID identifies the connection for KindConnectionNotFound and KindChannelClosed.
	ConnID ConnectionID

	// Status and Body carry the rejected upgrade response for KindHTTP.
	Status int
	Body   []byte

	Cause error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindAccept:
		msg = "failed to accept a new connection"
	case KindListen:
		msg = "failed to listen for new connections"
	case KindConnect:
		msg = "failed to connect"
	case KindHTTP:
		msg = fmt.Sprintf("websocket upgrade rejected with status %d: body %q", e.Status, e.Body)
	case KindConnectionNotFound:
		msg = "could not find connection with id " + e.ConnID.String()
	case KindChannelClosed:
		msg = "connection closed with id " + e.ConnID.String()
	case KindSend:
		msg = "attempted to send data over a closed channel"
	case KindSerialization:
		msg = "serialization failed"
	case KindIO:
		msg = "io failure"
	case KindProtocol:
		msg = "protocol violation"
	default:
		msg = "transport error"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. Sentinels such as
// ErrProtocol match every error of their kind regardless of cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsEstablishment reports whether err happened while a connection was being
// set up. Such errors are fatal to the call and never retried internally.
func IsEstablishment(err error) bool {
	switch KindOf(err) {
	case KindAccept, KindListen, KindConnect, KindHTTP:
		return true
	default:
		return false
	}
}

// AcceptError wraps a failed accept attempt.
func AcceptError(cause error) *Error {
	return &Error{Kind: KindAccept, Cause: cause}
}

// ListenError wraps a failure to bind the listening socket.
func ListenError(cause error) *Error {
	return &Error{Kind: KindListen, Cause: cause}
}

// ConnectError wraps a failed dial.
func ConnectError(cause error) *Error {
	return &Error{Kind: KindConnect, Cause: cause}
}

// HTTPError reports a rejected websocket upgrade with its response status and body.
func HTTPError(status int, body []byte) *Error {
	return &Error{Kind: KindHTTP, Status: status, Body: body}
}

// ConnectionNotFoundError reports an id that is not registered.
func ConnectionNotFoundError(id ConnectionID) *Error {
	return &Error{Kind: KindConnectionNotFound, ConnID: id}
}

// ChannelClosedError reports that the connection with id has stopped accepting packets.
func ChannelClosedError(id ConnectionID) *Error {
	return &Error{Kind: KindChannelClosed, ConnID: id}
}

// SendError reports a send on a closed registry.
func SendError() *Error {
	return &Error{Kind: KindSend}
}

// SerializationError wraps a codec failure.
func SerializationError(cause error) *Error {
	return &Error{Kind: KindSerialization, Cause: cause}
}

// IOError wraps a failure of the underlying stream.
func IOError(cause error) *Error {
	return &Error{Kind: KindIO, Cause: cause}
}

// ProtocolError wraps a framing or websocket protocol violation.
func ProtocolError(cause error) *Error {
	return &Error{Kind: KindProtocol, Cause: cause}
}
