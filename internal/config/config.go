// Package config loads the node configuration from YAML.
package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/eventnet/internal/core/network"
	"github.com/zeusync/eventnet/internal/core/observability/log"
)

// Transports understood by the node.
const (
	TransportWebSocket = "websocket"
	TransportTCP       = "tcp"
)

// Config is the complete node configuration.
//
//	transport: websocket
//	listen: 127.0.0.1:7400
//	dial: ws://127.0.0.1:7400/
//	peer_buffer: 64
//	log:
//	  level: debug
//	network:
//	  max_message_size: 1048576
//	  websocket:
//	    handshake_timeout: 5s
//	metrics:
//	  addr: 127.0.0.1:9400
type Config struct {
	Transport string `yaml:"transport"`
	// Listen is the bind address used by serve.
	Listen string `yaml:"listen"`
	// Dial is the target used by dial: a ws:// URL for websocket, host:port for tcp.
	Dial string `yaml:"dial"`
	// PeerBuffer sizes each connection's outbound queue and the shared inbound queue.
	PeerBuffer int `yaml:"peer_buffer"`

	Log     log.Config       `yaml:"log"`
	Network network.Settings `yaml:"network"`
	Metrics Metrics          `yaml:"metrics"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	// Addr serves /metrics when set.
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Transport:  TransportWebSocket,
		Listen:     "127.0.0.1:7400",
		Dial:       "ws://127.0.0.1:7400/",
		PeerBuffer: 64,
		Log:        log.DefaultConfig(),
		Network:    network.DefaultSettings(),
		Metrics: Metrics{
			Namespace: "eventnet",
		},
	}
}

// Load reads the file at path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to open config")
	}
	defer f.Close()

	cfg, err := LoadYAML(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load %s", path)
	}
	return cfg, nil
}

// LoadYAML decodes r over the defaults. Unknown keys are rejected.
func LoadYAML(r io.Reader) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the transport, log encoding and network settings.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportWebSocket, TransportTCP:
	default:
		return errors.Errorf("unknown transport %q", c.Transport)
	}
	if c.PeerBuffer < 0 {
		return errors.New("peer_buffer must not be negative")
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return errors.Errorf("unknown log encoding %q", c.Log.Encoding)
	}
	if err := c.Network.Validate(); err != nil {
		return errors.Wrap(err, "network")
	}
	return nil
}
