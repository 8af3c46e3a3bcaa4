package pool

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/willnx/autobox/metric"
)

// Metrics holds the pool's own Prometheus metrics. The pipeline-wide
// record counters live in metric.Metrics; these cover the coordinator's
// scaling behavior.
type Metrics struct {
	size           prometheus.Gauge
	queueDepth     prometheus.Gauge
	workersSpawned prometheus.Counter
	workersRetired prometheus.Counter
	workersCrashed prometheus.Counter
	scaleDecisions *prometheus.CounterVec
	processingTime *prometheus.HistogramVec
}

// newMetrics creates and registers the pool metrics. A nil registrar means
// metrics are disabled and callers get nil back.
func newMetrics(registrar metric.MetricsRegistrar) (*Metrics, error) {
	if registrar == nil {
		return nil, nil
	}

	m := &Metrics{
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autobox",
			Subsystem: "pool",
			Name:      "size",
			Help:      "Current number of tracked workers",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "autobox",
			Subsystem: "pool",
			Name:      "queue_depth",
			Help:      "Records waiting on the work channel",
		}),
		workersSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autobox",
			Subsystem: "pool",
			Name:      "workers_spawned_total",
			Help:      "Workers started over the life of the process",
		}),
		workersRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autobox",
			Subsystem: "pool",
			Name:      "workers_retired_total",
			Help:      "Workers that retired voluntarily after a termination marker",
		}),
		workersCrashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "autobox",
			Subsystem: "pool",
			Name:      "workers_crashed_total",
			Help:      "Workers that exited with an error",
		}),
		scaleDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autobox",
			Subsystem: "pool",
			Name:      "scale_decisions_total",
			Help:      "Scaling passes by direction",
		}, []string{"direction"}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "autobox",
			Subsystem: "pool",
			Name:      "processing_duration_seconds",
			Help:      "Time workers spend processing one record",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"status"}),
	}

	const component = "pool"
	if err := registrar.RegisterGauge(component, "size", m.size); err != nil {
		return nil, err
	}
	if err := registrar.RegisterGauge(component, "queue_depth", m.queueDepth); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(component, "workers_spawned", m.workersSpawned); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(component, "workers_retired", m.workersRetired); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounter(component, "workers_crashed", m.workersCrashed); err != nil {
		return nil, err
	}
	if err := registrar.RegisterCounterVec(component, "scale_decisions", m.scaleDecisions); err != nil {
		return nil, err
	}
	if err := registrar.RegisterHistogramVec(component, "processing_time", m.processingTime); err != nil {
		return nil, err
	}
	return m, nil
}
