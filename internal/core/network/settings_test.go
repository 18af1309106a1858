package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageLimit(t *testing.T) {
	assert.Equal(t, DefaultMaxMessageSize, Settings{}.MessageLimit())
	assert.Equal(t, uint64(512), Settings{MaxMessageSize: 512}.MessageLimit())
}

func TestHandshakeLimit(t *testing.T) {
	assert.Equal(t, DefaultHandshakeTimeout, Settings{}.HandshakeLimit())
	assert.Equal(t, 250*time.Millisecond, Settings{WebSocket: WebSocketSettings{HandshakeTimeout: 250 * time.Millisecond}}.HandshakeLimit())

	zero := DefaultSettings()
	zero.WebSocket.HandshakeTimeout = 0
	assert.NoError(t, zero.Validate())
	assert.Equal(t, DefaultHandshakeTimeout, zero.HandshakeLimit())
}

func TestWebSocketReadLimit(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		want     int64
	}{
		{name: "default", settings: Settings{}, want: int64(DefaultMaxMessageSize)},
		{name: "derived", settings: Settings{MaxMessageSize: 1024}, want: 1024},
		{name: "never below prefix", settings: Settings{MaxMessageSize: 2}, want: LengthPrefixSize},
		{name: "explicit", settings: Settings{MaxMessageSize: 1024, WebSocket: WebSocketSettings{ReadLimit: 4096}}, want: 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.settings.WebSocketReadLimit())
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())
	assert.NoError(t, Settings{}.Validate())

	invalid := map[string]func(*Settings){
		"negative buffer":  func(s *Settings) { s.WebSocket.ReadBufferSize = -1 },
		"negative timeout": func(s *Settings) { s.WebSocket.HandshakeTimeout = -time.Second },
		"negative limit":   func(s *Settings) { s.WebSocket.ReadLimit = -1 },
		"tiny limit":       func(s *Settings) { s.WebSocket.ReadLimit = 4 },
		"negative alive":   func(s *Settings) { s.TCP.KeepAlive = -time.Second },
	}
	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			settings := DefaultSettings()
			mutate(&settings)
			assert.Error(t, settings.Validate())
		})
	}
}
