// Package metrics wraps the optional Prometheus counters the command layer
// can report outcomes through. A nil *Metrics is a no-op on every method,
// so the core stays usable without a registry — the same guard
// caddyserver/caddy's modules use around their own optional Prometheus
// wiring.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters this repository adds beyond the original
// (frames parsed, CRC failures, GET/SET outcomes by status code, INFORMs
// emitted, INFORM overflow backtracks) — an ambient concern the spec's
// Non-goals don't exclude, and the rest of the retrieved corpus wires
// Prometheus wherever a component has countable outcomes.
type Metrics struct {
	framesParsed    prometheus.Counter
	crcFailures     prometheus.Counter
	getStatus       *prometheus.CounterVec
	setStatus       *prometheus.CounterVec
	informsEmitted  prometheus.Counter
	informOverflows prometheus.Counter
}

// New registers a fresh set of counters with reg (e.g.
// prometheus.DefaultRegisterer) under the "lolan" namespace.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lolan", Name: "frames_parsed_total",
			Help: "Frames successfully parsed by the frame codec.",
		}),
		crcFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lolan", Name: "crc_failures_total",
			Help: "Frames rejected for a CRC mismatch.",
		}),
		getStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lolan", Name: "get_replies_total",
			Help: "GET replies by overall status code.",
		}, []string{"status"}),
		setStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lolan", Name: "set_replies_total",
			Help: "SET replies by overall status code.",
		}, []string{"status"}),
		informsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lolan", Name: "informs_emitted_total",
			Help: "INFORM packets successfully produced.",
		}),
		informOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lolan", Name: "inform_overflow_backtracks_total",
			Help: "Times the INFORM encoder rolled back a variable to fit the payload budget.",
		}),
	}
	reg.MustRegister(m.framesParsed, m.crcFailures, m.getStatus, m.setStatus, m.informsEmitted, m.informOverflows)
	return m
}

func (m *Metrics) FrameParsed() {
	if m == nil {
		return
	}
	m.framesParsed.Inc()
}

func (m *Metrics) CRCFailure() {
	if m == nil {
		return
	}
	m.crcFailures.Inc()
}

func (m *Metrics) GetStatus(code int) {
	if m == nil {
		return
	}
	m.getStatus.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) SetStatus(code int) {
	if m == nil {
		return
	}
	m.setStatus.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) InformEmitted() {
	if m == nil {
		return
	}
	m.informsEmitted.Inc()
}

func (m *Metrics) InformOverflow() {
	if m == nil {
		return
	}
	m.informOverflows.Inc()
}
