package network

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/eventnet/internal/core/observability/log"
)

// Peers tracks attached connections. It fans every inbound packet into one
// channel tagged with its ConnectionID and reports each connection's end on
// the Disconnects channel.
type Peers struct {
	logger  log.Log
	metrics *Metrics
	buffer  int

	mu     sync.RWMutex
	conns  map[ConnectionID]*peer
	closed bool

	inbound     chan Message
	disconnects chan Disconnect
	done        chan struct{}
	wg          sync.WaitGroup
}

type peer struct {
	outbound chan NetworkPacket
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewPeers creates a registry whose per-connection outbound queues and shared
// inbound channel hold buffer packets.
func NewPeers(buffer int, logger log.Log, metrics *Metrics) *Peers {
	if buffer < 0 {
		buffer = 0
	}
	return &Peers{
		logger:      log.OrNop(logger),
		metrics:     metrics,
		buffer:      buffer,
		conns:       make(map[ConnectionID]*peer),
		inbound:     make(chan Message, buffer),
		disconnects: make(chan Disconnect, buffer),
		done:        make(chan struct{}),
	}
}

// Inbound delivers packets from every attached connection.
func (ps *Peers) Inbound() <-chan Message {
	return ps.inbound
}

// Disconnects delivers one event per attached connection once both of its
// loops have stopped and its socket is closed.
func (ps *Peers) Disconnects() <-chan Disconnect {
	return ps.disconnects
}

// Attach registers socket under a new ConnectionID and starts its receive and
// send loops. When either direction stops the other is cancelled, the socket
// is closed, the connection is removed and a Disconnect is published.
func Attach[S io.Closer, R, W, A, C any](
	ctx context.Context,
	ps *Peers,
	provider Provider[S, R, W, A, C],
	socket S,
	settings Settings,
) (ConnectionID, error) {
	id := NewConnectionID()
	ctx, cancel := context.WithCancel(ctx)
	p := &peer{
		outbound: make(chan NetworkPacket, ps.buffer),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		cancel()
		_ = socket.Close()
		return NilConnectionID, SendError()
	}
	ps.conns[id] = p
	ps.wg.Add(1)
	ps.mu.Unlock()

	ps.metrics.PeerAttached()
	logger := ps.logger.With(log.Stringer("conn", id))
	logger.Info("connection attached")

	go func() {
		defer ps.wg.Done()

		// Closing the socket unblocks a direction whose stream has no deadlines.
		stopClose := context.AfterFunc(ctx, func() { _ = socket.Close() })
		defer stopClose()

		read, write := provider.Split(socket)
		sink := make(chan NetworkPacket)

		group, gctx := errgroup.WithContext(ctx)
		group.Go(func() error {
			defer cancel()
			return provider.RecvLoop(gctx, read, sink, settings)
		})
		group.Go(func() error {
			defer cancel()
			return provider.SendLoop(gctx, write, p.outbound, settings)
		})
		group.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case packet := <-sink:
					select {
					case ps.inbound <- Message{From: id, Packet: packet}:
					case <-gctx.Done():
						return nil
					}
				}
			}
		})
		err := group.Wait()

		close(p.done)
		_ = socket.Close()
		ps.remove(id)
		ps.metrics.PeerDetached()

		if err != nil {
			logger.Warn("connection terminated", log.Error(err))
		} else {
			logger.Info("connection closed")
		}

		select {
		case ps.disconnects <- Disconnect{ID: id, Err: err}:
		case <-ps.done:
		}
	}()

	return id, nil
}

// Send queues packet on the connection's send loop.
func (ps *Peers) Send(ctx context.Context, id ConnectionID, packet NetworkPacket) error {
	ps.mu.RLock()
	closed := ps.closed
	p, ok := ps.conns[id]
	ps.mu.RUnlock()

	if closed {
		return SendError()
	}
	if !ok {
		return ConnectionNotFoundError(id)
	}

	select {
	case <-p.done:
		return ChannelClosedError(id)
	default:
	}

	select {
	case p.outbound <- packet:
		return nil
	case <-p.done:
		return ChannelClosedError(id)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast queues packet on every attached connection and returns the
// number of connections it reached.
func (ps *Peers) Broadcast(ctx context.Context, packet NetworkPacket) int {
	sent := 0
	for _, id := range ps.IDs() {
		if err := ps.Send(ctx, id, packet); err == nil {
			sent++
		}
	}
	return sent
}

// Disconnect stops a connection's loops. The Disconnect event follows once
// they have returned.
func (ps *Peers) Disconnect(id ConnectionID) error {
	ps.mu.RLock()
	p, ok := ps.conns[id]
	ps.mu.RUnlock()
	if !ok {
		return ConnectionNotFoundError(id)
	}
	p.cancel()
	return nil
}

// IDs returns the registered connection ids.
func (ps *Peers) IDs() []ConnectionID {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	ids := make([]ConnectionID, 0, len(ps.conns))
	for id := range ps.conns {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered connections.
func (ps *Peers) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.conns)
}

// Close stops every connection and waits for their loops to return. Later
// Attach and Send calls fail with KindSend.
func (ps *Peers) Close() {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return
	}
	ps.closed = true
	close(ps.done)
	for _, p := range ps.conns {
		p.cancel()
	}
	ps.mu.Unlock()

	ps.wg.Wait()
}

func (ps *Peers) remove(id ConnectionID) {
	ps.mu.Lock()
	delete(ps.conns, id)
	ps.mu.Unlock()
}
