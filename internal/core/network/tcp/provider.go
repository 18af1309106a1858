// Package tcp implements the transport provider over plain TCP. Frames are
// written straight to the connection.
package tcp

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/zeusync/eventnet/internal/core/network"
	"github.com/zeusync/eventnet/internal/core/observability/log"
)

var _ network.Provider[*net.TCPConn, *net.TCPConn, *net.TCPConn, string, string] = (*Provider)(nil)

// Provider accepts and dials "host:port" addresses.
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

// NewProvider creates a tcp provider encoding packets with codec.
func NewProvider(codec network.Codec, opts ...Option) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.OrNop(p.logger).With(log.String("transport", "tcp"))
	p.framer = network.NewFramer(codec, p.logger, p.metrics)
	return p
}

// Listen binds addr and returns the accept sequence.
func (p *Provider) Listen(ctx context.Context, addr string, settings network.Settings) (*network.Incoming[*net.TCPConn], error) {
	if err := settings.Validate(); err != nil {
		return nil, network.ListenError(errors.Wrap(err, "invalid settings"))
	}

	lc := net.ListenConfig{KeepAlive: settings.TCP.KeepAlive}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, network.ListenError(errors.Wrapf(err, "listen on %s", addr))
	}
	p.logger.Info("listening", log.Stringer("addr", listener.Addr()))

	upgrade := func(conn net.Conn) (*net.TCPConn, error) {
		return tune(conn, settings)
	}
	return network.NewIncoming(listener, upgrade, p.logger, p.metrics), nil
}

// AcceptLoop binds addr and returns the accept sequence as an AcceptStream.
func (p *Provider) AcceptLoop(ctx context.Context, addr string, settings network.Settings) (network.AcceptStream[*net.TCPConn], error) {
	incoming, err := p.Listen(ctx, addr, settings)
	if err != nil {
		return nil, err
	}
	return incoming, nil
}

// ConnectTask dials addr once. Any failure is KindConnect.
func (p *Provider) ConnectTask(ctx context.Context, addr string, settings network.Settings) (*net.TCPConn, error) {
	conn, err := p.dial(ctx, addr, settings)
	p.metrics.Dialed(err)
	if err != nil {
		p.logger.Warn("dial failed", log.String("addr", addr), log.Error(err))
		return nil, err
	}
	p.logger.Info("connected", log.Stringer("remote", conn.RemoteAddr()))
	return conn, nil
}

func (p *Provider) dial(ctx context.Context, addr string, settings network.Settings) (*net.TCPConn, error) {
	if err := settings.Validate(); err != nil {
		return nil, network.ConnectError(errors.Wrap(err, "invalid settings"))
	}

	dialer := net.Dialer{KeepAlive: settings.TCP.KeepAlive}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, network.ConnectError(errors.Wrapf(err, "dial %s", addr))
	}

	tcpConn, err := tune(conn, settings)
	if err != nil {
		return nil, network.ConnectError(err)
	}
	return tcpConn, nil
}

// RecvLoop decodes frames from read into sink until the stream ends.
func (p *Provider) RecvLoop(ctx context.Context, read *net.TCPConn, sink chan<- network.NetworkPacket, settings network.Settings) error {
	return p.framer.With(log.Stringer("remote", read.RemoteAddr())).RecvLoop(ctx, read, sink, settings)
}

// SendLoop frames packets from source onto write until source closes.
func (p *Provider) SendLoop(ctx context.Context, write *net.TCPConn, source <-chan network.NetworkPacket, settings network.Settings) error {
	return p.framer.With(log.Stringer("remote", write.RemoteAddr())).SendLoop(ctx, write, source, settings)
}

// Split returns the connection twice; net.Conn allows one concurrent reader
// and one concurrent writer.
func (p *Provider) Split(conn *net.TCPConn) (*net.TCPConn, *net.TCPConn) {
	return conn, conn
}

// Attach registers conn with peers and starts its loops.
func (p *Provider) Attach(ctx context.Context, peers *network.Peers, conn *net.TCPConn, settings network.Settings) (network.ConnectionID, error) {
	return network.Attach[*net.TCPConn, *net.TCPConn, *net.TCPConn, string, string](ctx, peers, p, conn, settings)
}

// tune applies the socket options from settings. It owns conn and closes it
// on failure.
func tune(conn net.Conn, settings network.Settings) (*net.TCPConn, error) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		_ = conn.Close()
		return nil, errors.Errorf("unexpected connection type %T", conn)
	}
	if err := tcpConn.SetNoDelay(settings.TCP.NoDelay); err != nil {
		_ = tcpConn.Close()
		return nil, errors.Wrap(err, "failed to set no delay")
	}
	return tcpConn, nil
}
