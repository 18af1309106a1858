package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/eventnet/internal/core/network"
	"github.com/zeusync/eventnet/internal/core/observability/log"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	const doc = `
transport: tcp
listen: 0.0.0.0:9000
dial: 10.0.0.1:9000
peer_buffer: 8
log:
  level: debug
  encoding: console
network:
  max_message_size: 1048576
  websocket:
    handshake_timeout: 3s
    read_limit: 2048
    subprotocols: [eventnet.v1]
  tcp:
    keep_alive: 30s
    no_delay: false
metrics:
  addr: 127.0.0.1:9400
`
	cfg, err := LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, TransportTCP, cfg.Transport)
	assert.Equal(t, "0.0.0.0:9000", cfg.Listen)
	assert.Equal(t, "10.0.0.1:9000", cfg.Dial)
	assert.Equal(t, 8, cfg.PeerBuffer)
	assert.Equal(t, log.LevelDebug, cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Encoding)
	assert.Equal(t, uint64(1<<20), cfg.Network.MaxMessageSize)
	assert.Equal(t, 3*time.Second, cfg.Network.WebSocket.HandshakeTimeout)
	assert.Equal(t, int64(2048), cfg.Network.WebSocket.ReadLimit)
	assert.Equal(t, []string{"eventnet.v1"}, cfg.Network.WebSocket.Subprotocols)
	assert.Equal(t, 30*time.Second, cfg.Network.TCP.KeepAlive)
	assert.False(t, cfg.Network.TCP.NoDelay)
	assert.Equal(t, "127.0.0.1:9400", cfg.Metrics.Addr)

	// Untouched keys keep their defaults.
	assert.Equal(t, "eventnet", cfg.Metrics.Namespace)
	assert.Equal(t, network.DefaultSettings().WebSocket.ReadBufferSize, cfg.Network.WebSocket.ReadBufferSize)
	assert.Equal(t, log.DefaultConfig().MaxBackups, cfg.Log.MaxBackups)
}

func TestLoadYAMLEmpty(t *testing.T) {
	cfg, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":       "transprot: tcp\n",
		"unknown transport": "transport: quic\n",
		"bad level":         "log:\n  level: loud\n",
		"bad encoding":      "log:\n  encoding: xml\n",
		"negative buffer":   "peer_buffer: -1\n",
		"tiny read limit":   "network:\n  websocket:\n    read_limit: 3\n",
		"bad duration":      "network:\n  tcp:\n    keep_alive: soon\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadYAML(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 127.0.0.1:0\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", cfg.Listen)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
