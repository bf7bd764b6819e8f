// Package metrics exposes prometheus collectors for the realtime core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	connections prometheus.Gauge
	events      *prometheus.CounterVec
	dropped     prometheus.Counter
	evictions   prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "listenparty",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "listenparty",
			Name:      "events_total",
			Help:      "Inbound realtime events by name and outcome.",
		}, []string{"event", "outcome"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "listenparty",
			Name:      "dropped_frames_total",
			Help:      "Outbound frames dropped because a send buffer was full.",
		}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: "listenparty",
			Name:      "evictions_total",
			Help:      "Connections replaced by a newer connection of the same user.",
		}),
	}
}

func (m *Metrics) ConnOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

// Event counts one handled event. outcome is "ok" or an error kind.
func (m *Metrics) Event(name, outcome string) {
	if m != nil {
		m.events.WithLabelValues(name, outcome).Inc()
	}
}

func (m *Metrics) Dropped() {
	if m != nil {
		m.dropped.Inc()
	}
}

func (m *Metrics) Evicted() {
	if m != nil {
		m.evictions.Inc()
	}
}
