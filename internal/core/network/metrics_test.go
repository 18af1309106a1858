package network

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(registry), WithSubsystem("ws"))

	m.Accepted()
	m.AcceptFailed(StageAccept)
	m.AcceptFailed(StageUpgrade)
	m.AcceptFailed(StageUpgrade)
	m.Dialed(nil)
	m.Dialed(HTTPError(401, nil))
	m.Dialed(errors.Wrap(ConnectError(errors.New("refused")), "dial"))
	m.FrameReceived(10)
	m.FrameSent(20)
	m.FrameSent(0)
	m.Dropped(DropEncode)
	m.PeerAttached()
	m.PeerAttached()
	m.PeerDetached()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.accepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.acceptFailures.WithLabelValues(StageAccept)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.acceptFailures.WithLabelValues(StageUpgrade)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dials.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dials.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dials.WithLabelValues("connect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesIn))
	assert.Equal(t, 18.0, testutil.ToFloat64(m.bytesIn))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesOut))
	assert.Equal(t, 36.0, testutil.ToFloat64(m.bytesOut))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues(DropEncode)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activePeers))

	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		assert.Contains(t, family.GetName(), "eventnet_ws_")
	}
}

func TestMetricsConstLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(registry), WithNamespace("edge"), WithConstLabels(prometheus.Labels{"node": "a"}))
	m.Accepted()

	count, err := testutil.GatherAndCount(registry, "edge_connections_accepted_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Accepted()
		m.AcceptFailed(StageAccept)
		m.Dialed(nil)
		m.FrameReceived(1)
		m.FrameSent(1)
		m.Dropped(DropOversize)
		m.PeerAttached()
		m.PeerDetached()
	})
}
