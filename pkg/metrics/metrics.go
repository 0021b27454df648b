package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one engine instance.
type Metrics struct {
	registry *prometheus.Registry

	// Registry metrics
	TagOps      *prometheus.CounterVec
	TagsTracked prometheus.Gauge

	// Renderer metrics
	Markers prometheus.Gauge

	// Selection metrics
	Selections *prometheus.CounterVec

	// Persistence metrics
	StoreFailures *prometheus.CounterVec

	// Host metrics
	HostClients  prometheus.Gauge
	HostMessages *prometheus.CounterVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TagOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalslayer_tag_operations_total",
				Help: "Registry mutations by operation",
			},
			[]string{"op"},
		),
		TagsTracked: f.NewGauge(prometheus.GaugeOpts{
			Name: "portalslayer_tags",
			Help: "Number of tag records in the registry",
		}),
		Markers: f.NewGauge(prometheus.GaugeOpts{
			Name: "portalslayer_markers",
			Help: "Number of markers currently rendered",
		}),
		Selections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalslayer_selections_total",
				Help: "Selection events by decision and reason",
			},
			[]string{"decision", "reason"},
		),
		StoreFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalslayer_store_failures_total",
				Help: "Persistence failures by key and direction",
			},
			[]string{"key", "direction"},
		),
		HostClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "portalslayer_host_clients",
			Help: "Connected map clients",
		}),
		HostMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portalslayer_host_messages_total",
				Help: "Host websocket messages by direction and type",
			},
			[]string{"direction", "type"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The helpers below accept a nil receiver so components can run without metrics.

// TagOp counts one registry mutation.
func (m *Metrics) TagOp(op string) {
	if m == nil {
		return
	}
	m.TagOps.WithLabelValues(op).Inc()
}

// SetTags records the registry size.
func (m *Metrics) SetTags(n int) {
	if m == nil {
		return
	}
	m.TagsTracked.Set(float64(n))
}

// SetMarkers records the number of rendered markers.
func (m *Metrics) SetMarkers(n int) {
	if m == nil {
		return
	}
	m.Markers.Set(float64(n))
}

// Selection counts one evaluated selection event.
func (m *Metrics) Selection(decision, reason string) {
	if m == nil {
		return
	}
	m.Selections.WithLabelValues(decision, reason).Inc()
}

// StoreFailure counts one failed load or save.
func (m *Metrics) StoreFailure(key, direction string) {
	if m == nil {
		return
	}
	m.StoreFailures.WithLabelValues(key, direction).Inc()
}

// SetHostClients records the number of connected map clients.
func (m *Metrics) SetHostClients(n int) {
	if m == nil {
		return
	}
	m.HostClients.Set(float64(n))
}

// HostMessage counts one websocket message.
func (m *Metrics) HostMessage(direction, typ string) {
	if m == nil {
		return
	}
	m.HostMessages.WithLabelValues(direction, typ).Inc()
}
