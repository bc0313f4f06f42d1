package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cory-johannsen/npcintent/internal/game/interaction"
	"github.com/cory-johannsen/npcintent/internal/game/tag"
)

// Metrics holds the interaction server's Prometheus collectors.
type Metrics struct {
	registry     *prometheus.Registry
	interactions *prometheus.CounterVec
	instances    prometheus.Gauge
}

// NewMetrics creates and registers all collectors on a private registry.
//
// Postcondition: Returns Metrics whose Handler serves every collector plus Go
// runtime and process metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		interactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "npc",
				Name:      "interactions_total",
				Help:      "Interaction requests by outcome.",
			},
			[]string{"outcome"},
		),
		instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "npc",
			Name:      "instances",
			Help:      "NPC instances currently owned by this host.",
		}),
	}
	reg.MustRegister(
		m.interactions,
		m.instances,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordInteraction implements interaction.Recorder. The intent is not used
// as a label because clients choose it.
func (m *Metrics) RecordInteraction(_ tag.Tag, outcome interaction.Outcome) {
	m.interactions.WithLabelValues(outcome.String()).Inc()
}

// SetInstances sets the live instance gauge.
func (m *Metrics) SetInstances(n int) {
	m.instances.Set(float64(n))
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
