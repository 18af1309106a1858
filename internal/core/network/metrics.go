package network

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the transport metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "eventnet").
	Namespace string

	// Subsystem is the metrics subsystem, typically the transport name.
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the transport metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels adds constant labels to every collector.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the registry the collectors are registered with.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "eventnet",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Accept failure stages.
const (
	StageAccept  = "accept"
	StageUpgrade = "upgrade"
)

// Outbound drop reasons.
const (
	DropEncode   = "encode"
	DropOversize = "oversize"
)

// Metrics holds the Prometheus collectors of one provider instance. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	accepted       prometheus.Counter
	acceptFailures *prometheus.CounterVec
	dials          *prometheus.CounterVec
	framesIn       prometheus.Counter
	framesOut      prometheus.Counter
	bytesIn        prometheus.Counter
	bytesOut       prometheus.Counter
	dropped        *prometheus.CounterVec
	activePeers    prometheus.Gauge
}

// NewMetrics creates and registers the transport collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	return &Metrics{
		accepted:       counter("connections_accepted_total", "Connections accepted and upgraded"),
		acceptFailures: counterVec("accept_failures_total", "Failed accept attempts by stage", "stage"),
		dials:          counterVec("dials_total", "Outbound connection attempts by result", "result"),
		framesIn:       counter("frames_received_total", "Frames decoded by receive loops"),
		framesOut:      counter("frames_sent_total", "Frames written by send loops"),
		bytesIn:        counter("received_bytes_total", "Frame bytes read including length prefixes"),
		bytesOut:       counter("sent_bytes_total", "Frame bytes written including length prefixes"),
		dropped:        counterVec("dropped_packets_total", "Outbound packets skipped by reason", "reason"),
		activePeers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_peers",
			Help:        "Connections currently attached to a peer registry",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Accepted counts a connection that completed its upgrade.
func (m *Metrics) Accepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
}

// AcceptFailed counts a failed accept attempt at stage.
func (m *Metrics) AcceptFailed(stage string) {
	if m == nil {
		return
	}
	m.acceptFailures.WithLabelValues(stage).Inc()
}

// Dialed counts a dial by its outcome.
func (m *Metrics) Dialed(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	m.dials.WithLabelValues(result).Inc()
}

// FrameReceived counts one inbound frame of size bytes.
func (m *Metrics) FrameReceived(size int) {
	if m == nil {
		return
	}
	m.framesIn.Inc()
	m.bytesIn.Add(float64(LengthPrefixSize + size))
}

// FrameSent counts one outbound frame of size bytes.
func (m *Metrics) FrameSent(size int) {
	if m == nil {
		return
	}
	m.framesOut.Inc()
	m.bytesOut.Add(float64(LengthPrefixSize + size))
}

// Dropped counts an outbound packet skipped for reason.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// PeerAttached increments the active peers gauge.
func (m *Metrics) PeerAttached() {
	if m == nil {
		return
	}
	m.activePeers.Inc()
}

// PeerDetached decrements the active peers gauge.
func (m *Metrics) PeerDetached() {
	if m == nil {
		return
	}
	m.activePeers.Dec()
}
