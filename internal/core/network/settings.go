package network

import (
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultMaxMessageSize bounds a single framed message when Settings leaves it unset.
	DefaultMaxMessageSize uint64 = 64 << 20

	DefaultHandshakeTimeout = 10 * time.Second
	DefaultKeepAlive        = 15 * time.Second
)

// Settings configures one provider instance. It is passed by value and must
// not be changed once the provider's loops are running.
type Settings struct {
	// MaxMessageSize is the largest accepted message body in bytes. Zero
	// selects DefaultMaxMessageSize.
	MaxMessageSize uint64 `yaml:"max_message_size"`

	WebSocket WebSocketSettings `yaml:"websocket"`
	TCP       TCPSettings       `yaml:"tcp"`
}

// WebSocketSettings tunes the gorilla/websocket backend.
type WebSocketSettings struct {
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`
	// HandshakeTimeout bounds the opening handshake on both sides. Zero
	// selects DefaultHandshakeTimeout; the handshake is never unbounded.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// WriteTimeout bounds a single frame write. Zero disables the deadline.
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// ReadLimit caps a single websocket message. Zero derives it from MaxMessageSize.
	ReadLimit    int64    `yaml:"read_limit"`
	Subprotocols []string `yaml:"subprotocols"`
}

// TCPSettings tunes the raw TCP backend.
type TCPSettings struct {
	KeepAlive time.Duration `yaml:"keep_alive"`
	NoDelay   bool          `yaml:"no_delay"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MaxMessageSize: DefaultMaxMessageSize,
		WebSocket: WebSocketSettings{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: DefaultHandshakeTimeout,
		},
		TCP: TCPSettings{
			KeepAlive: DefaultKeepAlive,
			NoDelay:   true,
		},
	}
}

// MessageLimit returns the effective maximum message size.
func (s Settings) MessageLimit() uint64 {
	if s.MaxMessageSize == 0 {
		return DefaultMaxMessageSize
	}
	return s.MaxMessageSize
}

// HandshakeLimit returns the effective websocket handshake timeout.
func (s Settings) HandshakeLimit() time.Duration {
	if s.WebSocket.HandshakeTimeout <= 0 {
		return DefaultHandshakeTimeout
	}
	return s.WebSocket.HandshakeTimeout
}

// WebSocketReadLimit returns the per-message limit handed to the websocket
// connection. Every websocket message carries either a length prefix or one
// body, so the body bound is sufficient.
func (s Settings) WebSocketReadLimit() int64 {
	if s.WebSocket.ReadLimit > 0 {
		return s.WebSocket.ReadLimit
	}
	limit := s.MessageLimit()
	if limit < LengthPrefixSize {
		limit = LengthPrefixSize
	}
	return int64(limit)
}

// Validate reports the first setting that is out of range.
func (s Settings) Validate() error {
	if s.MaxMessageSize > 0 && s.MaxMessageSize > uint64(maxInt) {
		return errors.Errorf("max_message_size %d does not fit in memory", s.MaxMessageSize)
	}
	if s.WebSocket.ReadBufferSize < 0 || s.WebSocket.WriteBufferSize < 0 {
		return errors.New("websocket buffer sizes must not be negative")
	}
	if s.WebSocket.HandshakeTimeout < 0 || s.WebSocket.WriteTimeout < 0 {
		return errors.New("websocket timeouts must not be negative")
	}
	if s.WebSocket.ReadLimit < 0 {
		return errors.New("websocket read_limit must not be negative")
	}
	if s.WebSocket.ReadLimit > 0 && s.WebSocket.ReadLimit < LengthPrefixSize {
		return errors.Errorf("websocket read_limit %d is smaller than the length prefix", s.WebSocket.ReadLimit)
	}
	if s.TCP.KeepAlive < 0 {
		return errors.New("tcp keep_alive must not be negative")
	}
	return nil
}

const maxInt = int(^uint(0) >> 1)
