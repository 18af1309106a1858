package network

import (
	"context"
	"net"
)

// AcceptStream is a lazy, restartable, unbounded sequence of accepted
// sockets. A failed attempt never ends the sequence; Next returns an error
// only when ctx is done or the stream was closed.
type AcceptStream[S any] interface {
	Next(ctx context.Context) (S, error)
	Addr() net.Addr
	Close() error
}

// Provider is implemented by every transport backend.
//
// Establishment calls (AcceptLoop, ConnectTask) fail synchronously with a
// KindListen, KindConnect or KindHTTP error and are attempted exactly once.
//
// RecvLoop and SendLoop drive one direction of one connection until it ends.
// They return nil when the peer disconnected cleanly, the source channel was
// closed, or ctx was cancelled, and the terminating error otherwise. Their
// return is the disconnect signal for that direction. The sink passed to
// RecvLoop must stay open until the loop returns.
type Provider[Socket, ReadHalf, WriteHalf, AcceptInfo, ConnectInfo any] interface {
	AcceptLoop(ctx context.Context, info AcceptInfo, settings Settings) (AcceptStream[Socket], error)
	ConnectTask(ctx context.Context, info ConnectInfo, settings Settings) (Socket, error)
	RecvLoop(ctx context.Context, read ReadHalf, sink chan<- NetworkPacket, settings Settings) error
	SendLoop(ctx context.Context, write WriteHalf, source <-chan NetworkPacket, settings Settings) error
	Split(socket Socket) (ReadHalf, WriteHalf)
}
