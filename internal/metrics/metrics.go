// Package metrics exposes relay diagnostics as Prometheus collectors.
//
// Every counter here backs an observable the protocol is required to
// surface: decode failures are never shown to the user, only counted;
// ledger size and evictions are how an operator detects pathological
// flooding volume.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all relay-core collectors. Each engine owns its own
// instance on a private registry so that multiple engines can coexist
// in one process (simulated multi-device tests included).
type Metrics struct {
	FramesReceived    prometheus.Counter
	DecodeErrors      *prometheus.CounterVec // reason: truncated|malformed|oversized
	DuplicatesDropped prometheus.Counter
	Delivered         *prometheus.CounterVec // kind
	Originated        *prometheus.CounterVec // kind
	Relayed           prometheus.Counter
	TerminalDrops     prometheus.Counter // delivered locally, hop budget exhausted
	BroadcastFailures prometheus.Counter
	SubscriberDrops   prometheus.Counter

	LedgerSize      prometheus.Gauge
	LedgerEvictions prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "relay",
			Name:      "frames_received_total",
			Help:      "Raw frames handed to the engine by the transport",
		}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "relay",
			Name:      "decode_errors_total",
			Help:      "Frames dropped at decode",
		}, []string{"reason"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "relay",
			Name:      "duplicates_dropped_total",
			Help:      "Frames dropped because the message ID was already seen",
		}),
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "relay",
			Name:      "delivered_total",
			Help:      "Messages delivered to local consumers",
		}, []string{"kind"}),
		Originated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "relay",
			Name:      "originated_total",
			Help:      "Messages composed on this device",
		}, []string{"kind"}),
		Relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "relay",
			Name:      "relayed_total",
			Help:      "Messages re-broadcast with a decremented hop budget",
		}),
		TerminalDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "relay",
			Name:      "terminal_drops_total",
			Help:      "Messages delivered locally but not relayed (hop budget zero)",
		}),
		BroadcastFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "relay",
			Name:      "broadcast_failures_total",
			Help:      "Transport broadcast attempts that failed (e.g. no peers)",
		}),
		SubscriberDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "relay",
			Name:      "subscriber_drops_total",
			Help:      "Deliveries dropped because a subscriber buffer was full",
		}),
		LedgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "beacon",
			Subsystem: "ledger",
			Name:      "entries",
			Help:      "Current dedup ledger entry count",
		}),
		LedgerEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "beacon",
			Subsystem: "ledger",
			Name:      "evictions_total",
			Help:      "Dedup ledger entries reclaimed after the expiry window",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FramesReceived,
		m.DecodeErrors,
		m.DuplicatesDropped,
		m.Delivered,
		m.Originated,
		m.Relayed,
		m.TerminalDrops,
		m.BroadcastFailures,
		m.SubscriberDrops,
		m.LedgerSize,
		m.LedgerEvictions,
	)
	return m
}

// Registry returns the private registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler serving this instance's metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
