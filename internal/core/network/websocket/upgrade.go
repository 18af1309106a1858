package websocket

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/eventnet/internal/core/network"
)

var errAlreadyHijacked = errors.New("connection already hijacked")

// hijackWriter lets gorilla's Upgrader run on a connection accepted outside
// of net/http. A successful upgrade hijacks the connection; a rejected one
// leaves a buffered response that flush writes back to the client.
type hijackWriter struct {
	conn     net.Conn
	br       *bufio.Reader
	header   http.Header
	status   int
	body     bytes.Buffer
	hijacked bool
}

var (
	_ http.ResponseWriter = (*hijackWriter)(nil)
	_ http.Hijacker       = (*hijackWriter)(nil)
)

func newHijackWriter(conn net.Conn, br *bufio.Reader) *hijackWriter {
	return &hijackWriter{
		conn:   conn,
		br:     br,
		header: make(http.Header),
	}
}

func (w *hijackWriter) Header() http.Header {
	return w.header
}

func (w *hijackWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *hijackWriter) Write(p []byte) (int, error) {
	w.WriteHeader(http.StatusOK)
	return w.body.Write(p)
}

func (w *hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if w.hijacked {
		return nil, nil, errAlreadyHijacked
	}
	w.hijacked = true
	return w.conn, bufio.NewReadWriter(w.br, bufio.NewWriter(w.conn)), nil
}

// flush writes the buffered response and asks the client to close.
func (w *hijackWriter) flush(req *http.Request) error {
	if w.hijacked {
		return errAlreadyHijacked
	}
	status := w.status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	resp := &http.Response{
		StatusCode:    status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        w.header,
		Body:          io.NopCloser(bytes.NewReader(w.body.Bytes())),
		ContentLength: int64(w.body.Len()),
		Close:         true,
		Request:       req,
	}
	return resp.Write(w.conn)
}

// badRequest answers a request that could not be parsed, the way net/http does.
func badRequest(conn net.Conn) {
	const response = "HTTP/1.1 400 Bad Request\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Connection: close\r\n\r\n" +
		"400 Bad Request"
	_, _ = io.WriteString(conn, response)
}

// upgrader builds the server side of the handshake from settings.
func upgrader(settings network.Settings) *websocket.Upgrader {
	return &websocket.Upgrader{
		HandshakeTimeout: settings.HandshakeLimit(),
		ReadBufferSize:   settings.WebSocket.ReadBufferSize,
		WriteBufferSize:  settings.WebSocket.WriteBufferSize,
		Subprotocols:     settings.WebSocket.Subprotocols,
		CheckOrigin: func(*http.Request) bool {
			// Peers are not browsers.
			return true
		},
	}
}

// serverUpgrade performs the websocket handshake on a raw accepted
// connection. It owns conn and closes it when the handshake fails.
func serverUpgrade(conn net.Conn, u *websocket.Upgrader, settings network.Settings) (*Socket, error) {
	_ = conn.SetDeadline(time.Now().Add(settings.HandshakeLimit()))

	br := bufio.NewReader(conn)
	req, err := http.ReadRequest(br)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			badRequest(conn)
		}
		_ = conn.Close()
		return nil, network.ProtocolError(errors.Wrap(err, "failed to read upgrade request"))
	}

	w := newHijackWriter(conn, br)
	ws, err := u.Upgrade(w, req, nil)
	if err != nil {
		if !w.hijacked {
			_ = w.flush(req)
		}
		_ = conn.Close()
		return nil, mapError(err, network.KindProtocol)
	}

	if err = conn.SetDeadline(time.Time{}); err != nil {
		_ = ws.Close()
		return nil, network.IOError(errors.Wrap(err, "failed to clear handshake deadline"))
	}
	return newSocket(ws, settings), nil
}
