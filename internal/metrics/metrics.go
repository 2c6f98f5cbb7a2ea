// Package metrics holds the Prometheus instruments for the API.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spamguard"

type Metrics struct {
	registry    *prometheus.Registry
	authEvents  *prometheus.CounterVec
	spamReports prometheus.Counter
	searches    prometheus.Counter
	disclosures *prometheus.CounterVec
	wsClients   prometheus.Gauge
}

// New creates the instruments and registers them with reg. A nil reg gets a
// fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Session operations by operation and outcome",
		}, []string{"op", "outcome"}),
		spamReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "spam_reports_total",
			Help:      "Phone numbers reported as spam",
		}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "searches_total",
			Help:      "User searches served",
		}),
		disclosures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "contact_lookups_total",
			Help:      "Contact detail lookups by whether the owner email was disclosed",
		}, []string{"disclosed"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connected_clients",
			Help:      "Websocket clients currently connected to the spam alert feed",
		}),
	}

	reg.MustRegister(m.authEvents, m.spamReports, m.searches, m.disclosures, m.wsClients)
	return m
}

// AuthEvent counts one session operation. outcome is "ok" or an error kind.
func (m *Metrics) AuthEvent(op, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) SpamReported() {
	if m == nil {
		return
	}
	m.spamReports.Inc()
}

func (m *Metrics) Searched() {
	if m == nil {
		return
	}
	m.searches.Inc()
}

func (m *Metrics) ContactLookup(disclosed bool) {
	if m == nil {
		return
	}
	label := "false"
	if disclosed {
		label = "true"
	}
	m.disclosures.WithLabelValues(label).Inc()
}

func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	reg := prometheus.NewRegistry()
	if m != nil {
		reg = m.registry
	}
	return adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
}
