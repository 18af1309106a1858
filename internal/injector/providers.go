package injector

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zeusync/eventnet/internal/config"
	"github.com/zeusync/eventnet/internal/core/network"
	"github.com/zeusync/eventnet/internal/core/network/codec"
	"github.com/zeusync/eventnet/internal/core/network/tcp"
	"github.com/zeusync/eventnet/internal/core/network/websocket"
	"github.com/zeusync/eventnet/internal/core/observability/log"
)

// Node holds everything a serving or dialing process needs.
type Node struct {
	Config    config.Config
	Settings  network.Settings
	Logger    *log.Logger
	Registry  *prometheus.Registry
	Metrics   *network.Metrics
	WebSocket *websocket.Provider
	TCP       *tcp.Provider
	Peers     *network.Peers
}

// NodeSet provides every component of a Node.
var NodeSet = wire.NewSet(
	ProvideLogger,
	ProvideSettings,
	ProvideRegistry,
	ProvideMetrics,
	ProvideCodec,
	ProvideWebSocket,
	ProvideTCP,
	ProvidePeers,
	wire.Struct(new(Node), "*"),
)

// ProvideLogger builds the logger from cfg and flushes it on cleanup.
func ProvideLogger(cfg config.Config) (*log.Logger, func()) {
	logger := log.NewWithConfig(cfg.Log)
	return logger, func() { _ = logger.Sync() }
}

// ProvideSettings returns the validated network settings.
func ProvideSettings(cfg config.Config) (network.Settings, error) {
	if err := cfg.Validate(); err != nil {
		return network.Settings{}, err
	}
	return cfg.Network, nil
}

// ProvideRegistry returns a fresh metrics registry for the node.
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics registers the transport metrics on registry.
func ProvideMetrics(cfg config.Config, registry *prometheus.Registry) *network.Metrics {
	return network.NewMetrics(
		network.WithRegistry(registry),
		network.WithNamespace(cfg.Metrics.Namespace),
		network.WithSubsystem(cfg.Transport),
	)
}

// ProvideCodec returns the packet codec.
func ProvideCodec() network.Codec {
	return codec.NewCBOR()
}

// ProvideWebSocket returns the websocket provider.
func ProvideWebSocket(c network.Codec, logger *log.Logger, metrics *network.Metrics) *websocket.Provider {
	return websocket.NewProvider(c, websocket.WithLogger(logger), websocket.WithMetrics(metrics))
}

// ProvideTCP returns the tcp provider.
func ProvideTCP(c network.Codec, logger *log.Logger, metrics *network.Metrics) *tcp.Provider {
	return tcp.NewProvider(c, tcp.WithLogger(logger), tcp.WithMetrics(metrics))
}

// ProvidePeers builds the registry and stops every connection on cleanup.
func ProvidePeers(cfg config.Config, logger *log.Logger, metrics *network.Metrics) (*network.Peers, func()) {
	peers := network.NewPeers(cfg.PeerBuffer, logger, metrics)
	return peers, peers.Close
}
