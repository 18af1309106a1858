package websocket

import (
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/eventnet/internal/core/network"
)

// closeGrace bounds the close frame written by Close.
const closeGrace = time.Second

var _ io.ReadWriteCloser = (*Socket)(nil)

// Socket is one established websocket connection exposed as a byte stream.
// Every binary message contributes its payload to the stream; message
// boundaries carry no meaning.
//
// The read and write halves share the connection. readMu serializes the
// single reader and writeMu the single writer, the way gorilla/websocket
// requires. Neither lock is held while waiting on the other direction, so a
// blocked read never stalls a write and control frames keep flowing.
type Socket struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	readMu  sync.Mutex
	reader  io.Reader
	readErr error

	writeMu sync.Mutex
	// writeDeadline holds an explicit deadline in UnixNano, zero when unset.
	writeDeadline atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

func newSocket(conn *websocket.Conn, settings network.Settings) *Socket {
	conn.SetReadLimit(settings.WebSocketReadLimit())
	return &Socket{
		conn:         conn,
		writeTimeout: settings.WebSocket.WriteTimeout,
	}
}

// Read reads from the current binary message, moving on to the next message
// once it is drained. A normal close by the peer reads as io.EOF.
func (s *Socket) Read(p []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	// gorilla/websocket treats every read error as permanent.
	if s.readErr != nil {
		return 0, s.readErr
	}

	for {
		if s.reader == nil {
			messageType, r, err := s.conn.NextReader()
			if err != nil {
				s.readErr = mapReadError(err)
				return 0, s.readErr
			}
			if messageType != websocket.BinaryMessage {
				s.readErr = network.ProtocolError(errors.Errorf("unexpected %s message", messageTypeName(messageType)))
				return 0, s.readErr
			}
			s.reader = r
		}

		n, err := s.reader.Read(p)
		if errors.Is(err, io.EOF) {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			s.readErr = mapReadError(err)
			return n, s.readErr
		}
		return n, nil
	}
}

// Write sends p as one binary message.
func (s *Socket) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := s.nextWriteDeadline()
	if !deadline.IsZero() && !deadline.After(time.Now()) {
		return 0, network.IOError(os.ErrDeadlineExceeded)
	}
	_ = s.conn.SetWriteDeadline(deadline)

	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, mapError(err, network.KindIO)
	}
	return len(p), nil
}

func (s *Socket) nextWriteDeadline() time.Time {
	if nanos := s.writeDeadline.Load(); nanos != 0 {
		return time.Unix(0, nanos)
	}
	if s.writeTimeout > 0 {
		return time.Now().Add(s.writeTimeout)
	}
	return time.Time{}
}

// Close sends a normal close frame and closes the connection. It is safe to
// call concurrently with Read and Write and more than once.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeGrace))
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = network.IOError(errors.Wrap(err, "failed to close websocket"))
		}
	})
	return s.closeErr
}

// SetReadDeadline applies to the pending and future reads.
func (s *Socket) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// SetWriteDeadline applies to future writes and interrupts one in progress.
func (s *Socket) SetWriteDeadline(t time.Time) error {
	var nanos int64
	if !t.IsZero() {
		nanos = t.UnixNano()
	}
	s.writeDeadline.Store(nanos)
	return s.conn.NetConn().SetWriteDeadline(t)
}

// SetDeadline sets both the read and write deadlines.
func (s *Socket) SetDeadline(t time.Time) error {
	if err := s.SetReadDeadline(t); err != nil {
		return err
	}
	return s.SetWriteDeadline(t)
}

// LocalAddr returns the local network address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (s *Socket) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// Subprotocol returns the negotiated subprotocol, if any.
func (s *Socket) Subprotocol() string {
	return s.conn.Subprotocol()
}

func messageTypeName(messageType int) string {
	switch messageType {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	case websocket.CloseMessage:
		return "close"
	case websocket.PingMessage:
		return "ping"
	case websocket.PongMessage:
		return "pong"
	default:
		return "unknown"
	}
}
