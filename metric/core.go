package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains pipeline-level metrics shared across components.
// Component-specific metrics (pool sizing, staged points) are registered by
// the owning package through the MetricsRegistrar interface.
type Metrics struct {
	// Service metrics
	ServiceStatus     *prometheus.GaugeVec
	RecordsReceived   *prometheus.CounterVec
	RecordsProcessed  *prometheus.CounterVec
	IdleReceives      *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	HealthCheckStatus *prometheus.GaugeVec

	// Broker metrics
	BrokerConnected  prometheus.Gauge
	BrokerReconnects prometheus.Counter

	// Store metrics
	StoreWrites        *prometheus.CounterVec
	StoreWriteDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all pipeline metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "autobox",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		RecordsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autobox",
				Subsystem: "records",
				Name:      "received_total",
				Help:      "Total number of records pulled from the broker",
			},
			[]string{"source"},
		),

		RecordsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autobox",
				Subsystem: "records",
				Name:      "processed_total",
				Help:      "Total number of records processed by workers",
			},
			[]string{"category", "status"},
		),

		IdleReceives: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autobox",
				Subsystem: "records",
				Name:      "idle_receives_total",
				Help:      "Receive attempts that timed out with no record available",
			},
			[]string{"source"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autobox",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"component", "class"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "autobox",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"component"},
		),

		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "autobox",
				Subsystem: "broker",
				Name:      "connected",
				Help:      "Broker connection status (0=disconnected, 1=connected)",
			},
		),

		BrokerReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "autobox",
				Subsystem: "broker",
				Name:      "reconnects_total",
				Help:      "Total number of broker reconnections",
			},
		),

		StoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "autobox",
				Subsystem: "store",
				Name:      "writes_total",
				Help:      "Total number of store write operations",
			},
			[]string{"store", "status"},
		),

		StoreWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "autobox",
				Subsystem: "store",
				Name:      "write_duration_seconds",
				Help:      "Store write duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"store"},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordReceived increments the received record counter
func (c *Metrics) RecordReceived(source string) {
	c.RecordsReceived.WithLabelValues(source).Inc()
}

// RecordProcessed increments the processed record counter.
// Status is "ok", "dropped", or "failed".
func (c *Metrics) RecordProcessed(category, status string) {
	c.RecordsProcessed.WithLabelValues(category, status).Inc()
}

// RecordIdleReceive increments the idle receive counter
func (c *Metrics) RecordIdleReceive(source string) {
	c.IdleReceives.WithLabelValues(source).Inc()
}

// RecordError increments the error counter
func (c *Metrics) RecordError(component, class string) {
	c.ErrorsTotal.WithLabelValues(component, class).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordBrokerStatus updates broker connection status
func (c *Metrics) RecordBrokerStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.BrokerConnected.Set(value)
}

// RecordBrokerReconnect increments the reconnection counter
func (c *Metrics) RecordBrokerReconnect() {
	c.BrokerReconnects.Inc()
}

// RecordStoreWrite increments the store write counter.
// Status is "ok" or "error".
func (c *Metrics) RecordStoreWrite(store, status string) {
	c.StoreWrites.WithLabelValues(store, status).Inc()
}

// RecordStoreWriteDuration records a store write duration
func (c *Metrics) RecordStoreWriteDuration(store string, duration time.Duration) {
	c.StoreWriteDuration.WithLabelValues(store).Observe(duration.Seconds())
}
