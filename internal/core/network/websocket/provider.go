// Package websocket implements the transport provider over gorilla/websocket.
// Frames travel as binary websocket messages, so any proxy that forwards
// websocket traffic can carry them.
package websocket

import (
	"context"
	"io"
	"net"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/eventnet/internal/core/network"
	"github.com/zeusync/eventnet/internal/core/observability/log"
)

// maxErrorBody bounds the rejected handshake body kept in a KindHTTP error.
const maxErrorBody = 4 << 10

var _ network.Provider[*Socket, *Socket, *Socket, string, *url.URL] = (*Provider)(nil)

// Provider accepts on "host:port" addresses and dials ws:// URLs. One
// Provider can serve any number of listeners and connections.
type Provider struct {
	logger  log.Log
	metrics *network.Metrics
	framer  *network.Framer
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used by the provider and its loops.
func WithLogger(logger log.Log) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithMetrics sets the collectors the provider records to.
func WithMetrics(metrics *network.Metrics) Option {
	return func(p *Provider) {
		p.metrics = metrics
	}
}

// NewProvider creates a websocket provider encoding packets with codec.
func NewProvider(codec network.Codec, opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.OrNop(p.logger).With(log.String("transport", "websocket"))
	p.framer = network.NewFramer(codec, p.logger, p.metrics)
	return p
}

// Listen binds addr and returns the accept sequence. Every attempt accepts a
// TCP connection and performs the server handshake on it.
func (p *Provider) Listen(ctx context.Context, addr string, settings network.Settings) (*network.Incoming[*Socket], error) {
	if err := settings.Validate(); err != nil {
		return nil, network.ListenError(errors.Wrap(err, "invalid settings"))
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, network.ListenError(errors.Wrapf(err, "listen on %s", addr))
	}
	p.logger.Info("listening", log.Stringer("addr", listener.Addr()))

	u := upgrader(settings)
	upgrade := func(conn net.Conn) (*Socket, error) {
		return serverUpgrade(conn, u, settings)
	}
	return network.NewIncoming(listener, upgrade, p.logger, p.metrics), nil
}

// AcceptLoop binds addr and returns the accept sequence as an AcceptStream.
func (p *Provider) AcceptLoop(ctx context.Context, addr string, settings network.Settings) (network.AcceptStream[*Socket], error) {
	incoming, err := p.Listen(ctx, addr, settings)
	if err != nil {
		return nil, err
	}
	return incoming, nil
}

// ConnectTask dials target once. A handshake answered with a non-101 status
// fails with KindHTTP carrying the status and body; any other failure is
// KindConnect.
func (p *Provider) ConnectTask(ctx context.Context, target *url.URL, settings network.Settings) (*Socket, error) {
	socket, err := p.dial(ctx, target, settings)
	p.metrics.Dialed(err)
	if err != nil {
		p.logger.Warn("dial failed", log.Error(err))
		return nil, err
	}
	p.logger.Info("connected", log.Stringer("remote", socket.RemoteAddr()))
	return socket, nil
}

func (p *Provider) dial(ctx context.Context, target *url.URL, settings network.Settings) (*Socket, error) {
	if target == nil {
		return nil, network.ConnectError(errors.New("no dial target"))
	}
	if err := settings.Validate(); err != nil {
		return nil, network.ConnectError(errors.Wrap(err, "invalid settings"))
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: settings.HandshakeLimit(),
		ReadBufferSize:   settings.WebSocket.ReadBufferSize,
		WriteBufferSize:  settings.WebSocket.WriteBufferSize,
		Subprotocols:     settings.WebSocket.Subprotocols,
	}
	conn, resp, err := dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()
			return nil, network.HTTPError(resp.StatusCode, body)
		}
		return nil, network.ConnectError(errors.Wrapf(err, "dial %s", target.Redacted()))
	}
	return newSocket(conn, settings), nil
}

// RecvLoop decodes frames from read into sink until the stream ends.
func (p *Provider) RecvLoop(ctx context.Context, read *Socket, sink chan<- network.NetworkPacket, settings network.Settings) error {
	return p.framer.With(log.Stringer("remote", read.RemoteAddr())).RecvLoop(ctx, read, sink, settings)
}

// SendLoop frames packets from source onto write until source closes.
func (p *Provider) SendLoop(ctx context.Context, write *Socket, source <-chan network.NetworkPacket, settings network.Settings) error {
	return p.framer.With(log.Stringer("remote", write.RemoteAddr())).SendLoop(ctx, write, source, settings)
}

// Split returns the socket twice: both halves share one connection.
func (p *Provider) Split(socket *Socket) (*Socket, *Socket) {
	return socket, socket
}

// Attach registers socket with peers and starts its loops.
func (p *Provider) Attach(ctx context.Context, peers *network.Peers, socket *Socket, settings network.Settings) (network.ConnectionID, error) {
	return network.Attach[*Socket, *Socket, *Socket, string, *url.URL](ctx, peers, p, socket, settings)
}
