// Package metrics exposes Prometheus collectors for the device.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional *Metrics without checking it.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kinetic"

// Admission routes.
const (
	RouteOrdered = "ordered"
	RoutePool    = "pool"
	RouteBatch   = "batch"
)

// Drop reasons.
const (
	DropQueueClosed = "queue_closed"
	DropQueueFull   = "queue_full"
)

// Metrics holds the device collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	admittedTotal   *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	connections     *prometheus.GaugeVec
	pinOpsTotal     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Returns nil, nil when reg is nil (metrics disabled).
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "requests_total",
			Help:      "Requests executed, by message type and response status",
		}, []string{"message_type", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "device",
			Name:      "request_duration_seconds",
			Help:      "Request execution time from admission to response",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"message_type"}),

		admittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "admitted_total",
			Help:      "Requests admitted, by route (ordered, pool, batch)",
		}, []string{"route"}),

		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "dropped_total",
			Help:      "Requests dropped without execution, by reason",
		}, []string{"reason"}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "ordered_queue_depth",
			Help:      "Requests waiting in ordered queues across all connections",
		}),

		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "connections",
			Help:      "Live connections, by channel security",
		}, []string{"secure"}),

		pinOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "pin_operations_total",
			Help:      "Pin operations, by operation and response status",
		}, []string{"op", "status"}),
	}

	for _, c := range []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.admittedTotal,
		m.droppedTotal,
		m.queueDepth,
		m.connections,
		m.pinOpsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordRequest records one executed request.
func (m *Metrics) RecordRequest(messageType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(messageType, status).Inc()
	m.requestDuration.WithLabelValues(messageType).Observe(d.Seconds())
}

// RecordAdmitted records a request taking the given route.
func (m *Metrics) RecordAdmitted(route string) {
	if m == nil {
		return
	}
	m.admittedTotal.WithLabelValues(route).Inc()
}

// RecordDropped records a request dropped for reason.
func (m *Metrics) RecordDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedTotal.WithLabelValues(reason).Inc()
}

// AddQueueDepth adjusts the ordered queue depth gauge.
func (m *Metrics) AddQueueDepth(delta int) {
	if m == nil {
		return
	}
	m.queueDepth.Add(float64(delta))
}

// ConnectionOpened records a new connection.
func (m *Metrics) ConnectionOpened(secure bool) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(strconv.FormatBool(secure)).Inc()
}

// ConnectionClosed records a closed connection.
func (m *Metrics) ConnectionClosed(secure bool) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(strconv.FormatBool(secure)).Dec()
}

// RecordPinOp records a pin operation outcome.
func (m *Metrics) RecordPinOp(op, status string) {
	if m == nil {
		return
	}
	m.pinOpsTotal.WithLabelValues(op, status).Inc()
}
