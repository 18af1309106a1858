package network

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	id := NewConnectionID()

	tests := []struct {
		name         string
		err          *Error
		sentinel     error
		kind         Kind
		establishing bool
		contains     string
	}{
		{name: "accept", err: AcceptError(cause), sentinel: ErrAccept, kind: KindAccept, establishing: true, contains: "failed to accept"},
		{name: "listen", err: ListenError(cause), sentinel: ErrListen, kind: KindListen, establishing: true, contains: "failed to listen"},
		{name: "connect", err: ConnectError(cause), sentinel: ErrConnect, kind: KindConnect, establishing: true, contains: "failed to connect"},
		{name: "http", err: HTTPError(401, []byte("denied")), sentinel: ErrHTTP, kind: KindHTTP, establishing: true, contains: "status 401"},
		{name: "not found", err: ConnectionNotFoundError(id), sentinel: ErrConnectionNotFound, kind: KindConnectionNotFound, contains: id.String()},
		{name: "channel closed", err: ChannelClosedError(id), sentinel: ErrChannelClosed, kind: KindChannelClosed, contains: id.String()},
		{name: "send", err: SendError(), sentinel: ErrSend, kind: KindSend, contains: "closed channel"},
		{name: "serialization", err: SerializationError(cause), sentinel: ErrSerialization, kind: KindSerialization, contains: "boom"},
		{name: "io", err: IOError(io.ErrClosedPipe), sentinel: ErrIO, kind: KindIO, contains: "closed pipe"},
		{name: "protocol", err: ProtocolError(ErrFrameTruncated), sentinel: ErrProtocol, kind: KindProtocol, contains: "truncated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.establishing, IsEstablishment(tt.err))
			assert.Contains(t, tt.err.Error(), tt.contains)

			wrapped := errors.Wrap(tt.err, "outer")
			assert.Equal(t, tt.kind, KindOf(wrapped))
			assert.ErrorIs(t, wrapped, tt.sentinel)
		})
	}
}

func TestErrorKindsDoNotCrossMatch(t *testing.T) {
	err := IOError(io.EOF)
	assert.NotErrorIs(t, err, ErrProtocol)
	assert.ErrorIs(t, err, io.EOF)
}

func TestKindOfForeignErrors(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(io.EOF))
	assert.False(t, IsEstablishment(io.EOF))
	assert.Equal(t, "unknown", KindUnknown.String())
}

func TestHTTPErrorCarriesResponse(t *testing.T) {
	err := error(HTTPError(403, []byte("forbidden")))

	var netErr *Error
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, 403, netErr.Status)
	assert.Equal(t, []byte("forbidden"), netErr.Body)
	assert.Contains(t, err.Error(), `"forbidden"`)
}
