package injector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/eventnet/internal/config"
)

func TestInitializeNode(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = config.TransportTCP

	node, cleanup, err := InitializeNode(cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, cfg.Network, node.Settings)
	assert.NotNil(t, node.Logger)
	assert.NotNil(t, node.WebSocket)
	assert.NotNil(t, node.TCP)
	assert.Equal(t, 0, node.Peers.Len())

	node.Metrics.Accepted()
	families, err := node.Registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "eventnet_tcp_connections_accepted_total")
}

func TestInitializeNodeRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Transport = "carrier-pigeon"

	_, _, err := InitializeNode(cfg)
	assert.Error(t, err)
}
