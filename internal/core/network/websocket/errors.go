package websocket

import (
	"fmt"
	"io"
	"net"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/eventnet/internal/core/network"
)

// mapError classifies a gorilla/websocket error. Errors that already carry a
// kind pass through, and anything unrecognised is reported as fallback.
func mapError(err error, fallback network.Kind) error {
	if err == nil {
		return nil
	}
	if network.KindOf(err) != network.KindUnknown {
		return err
	}

	var (
		closeErr     *websocket.CloseError
		handshakeErr websocket.HandshakeError
		netErr       net.Error
	)
	switch {
	case errors.As(err, &closeErr):
		if isProtocolClose(closeErr.Code) {
			return network.ProtocolError(err)
		}
		return network.IOError(err)
	case errors.Is(err, websocket.ErrCloseSent):
		return network.IOError(err)
	case errors.Is(err, websocket.ErrReadLimit):
		return network.ProtocolError(fmt.Errorf("%w: %w", network.ErrMessageTooLarge, err))
	case errors.Is(err, websocket.ErrBadHandshake):
		return &network.Error{Kind: network.KindHTTP, Cause: err}
	case errors.As(err, &handshakeErr):
		return network.ProtocolError(err)
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.As(err, &netErr):
		return network.IOError(err)
	default:
		return &network.Error{Kind: fallback, Cause: err}
	}
}

// mapReadError is mapError for the read side. A close initiated by the peer,
// or a connection dropped between messages, ends the stream.
func mapReadError(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && isCleanClose(closeErr.Code) {
		return io.EOF
	}
	// gorilla/websocket reports unrecognised frame problems as plain errors.
	return mapError(err, network.KindProtocol)
}

func isCleanClose(code int) bool {
	switch code {
	case websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure:
		return true
	default:
		return false
	}
}

func isProtocolClose(code int) bool {
	switch code {
	case websocket.CloseProtocolError,
		websocket.CloseUnsupportedData,
		websocket.CloseInvalidFramePayloadData,
		websocket.CloseMessageTooBig:
		return true
	default:
		return false
	}
}
