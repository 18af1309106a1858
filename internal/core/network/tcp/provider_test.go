package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/eventnet/internal/core/network"
	"github.com/zeusync/eventnet/internal/core/network/codec"
)

const waitTimeout = 5 * time.Second

func testSettings() network.Settings {
	settings := network.DefaultSettings()
	settings.MaxMessageSize = 1 << 16
	return settings
}

func connectPair(t *testing.T, p *Provider, settings network.Settings) (server, client *net.TCPConn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()

	incoming, err := p.Listen(ctx, "127.0.0.1:0", settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = incoming.Close() })

	client, err = p.ConnectTask(ctx, incoming.Addr().String(), settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	server, err = incoming.Next(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })
	return server, client
}

func recvAsync(ctx context.Context, p *Provider, conn *net.TCPConn, settings network.Settings) (<-chan network.NetworkPacket, <-chan error) {
	sink := make(chan network.NetworkPacket, 16)
	done := make(chan error, 1)
	go func() { done <- p.RecvLoop(ctx, conn, sink, settings) }()
	return sink, done
}

func awaitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for loop to return")
		return nil
	}
}

func TestPingPong(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewProvider(codec.NewCBOR())
	settings := testSettings()
	server, client := connectPair(t, p, settings)

	serverIn, _ := recvAsync(ctx, p, server, settings)
	clientIn, _ := recvAsync(ctx, p, client, settings)

	clientOut := make(chan network.NetworkPacket, 1)
	serverOut := make(chan network.NetworkPacket, 1)
	go func() { _ = p.SendLoop(ctx, client, clientOut, settings) }()
	go func() { _ = p.SendLoop(ctx, server, serverOut, settings) }()

	clientOut <- network.NewPacket("ping", []byte("1234"))
	select {
	case got := <-serverIn:
		assert.Equal(t, network.NewPacket("ping", []byte("1234")), got)
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for ping")
	}

	serverOut <- network.NewPacket("pong", nil)
	select {
	case got := <-clientIn:
		assert.Equal(t, "pong", got.Kind)
		assert.Empty(t, got.Data)
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for pong")
	}
}

func TestPeerCloseEndsRecvLoopCleanly(t *testing.T) {
	p := NewProvider(codec.NewCBOR())
	settings := testSettings()
	server, client := connectPair(t, p, settings)

	_, done := recvAsync(context.Background(), p, server, settings)
	require.NoError(t, client.Close())
	assert.NoError(t, awaitErr(t, done))
}

func TestPartialHeaderIsProtocolViolation(t *testing.T) {
	p := NewProvider(codec.NewCBOR())
	settings := testSettings()
	server, client := connectPair(t, p, settings)

	_, done := recvAsync(context.Background(), p, server, settings)
	_, err := client.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, client.CloseWrite())

	err = awaitErr(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrProtocol)
	assert.ErrorIs(t, err, network.ErrFrameTruncated)
}

func TestConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = NewProvider(codec.NewCBOR()).ConnectTask(context.Background(), addr, testSettings())
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrConnect)
}

func TestListenInvalidAddress(t *testing.T) {
	_, err := NewProvider(codec.NewCBOR()).AcceptLoop(context.Background(), "127.0.0.1:-1", testSettings())
	require.Error(t, err)
	assert.ErrorIs(t, err, network.ErrListen)
}

func TestAttachToPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewProvider(codec.NewCBOR())
	settings := testSettings()
	server, client := connectPair(t, p, settings)

	peers := network.NewPeers(4, nil, nil)
	defer peers.Close()

	id, err := p.Attach(ctx, peers, server, settings)
	require.NoError(t, err)

	clientIn, _ := recvAsync(ctx, p, client, settings)
	require.NoError(t, peers.Send(ctx, id, network.NewPacket("welcome", []byte("hi"))))

	select {
	case got := <-clientIn:
		assert.Equal(t, network.NewPacket("welcome", []byte("hi")), got)
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for packet")
	}

	require.NoError(t, peers.Disconnect(id))
	select {
	case ev := <-peers.Disconnects():
		assert.Equal(t, id, ev.ID)
		assert.NoError(t, ev.Err)
	case <-time.After(waitTimeout):
		require.FailNow(t, "timed out waiting for disconnect")
	}
}
