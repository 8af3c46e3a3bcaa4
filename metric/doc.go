// Package metric provides Prometheus-based observability for the pipeline.
//
// The package has three parts: a MetricsRegistry that wraps a private
// prometheus.Registry and tracks which component registered which metric,
// a core Metrics set covering the pipeline as a whole (records received,
// processed, dropped, store writes, broker connectivity), and an HTTP
// Server that exposes everything on an operational port.
//
// # Quick Start
//
//	registry := metric.NewMetricsRegistry()
//
//	server := metric.NewServer(9100, "/metrics", registry)
//	go func() {
//	    if err := server.Start(); err != nil {
//	        slog.Error("Metrics server failed", "error", err)
//	    }
//	}()
//	defer server.Stop()
//
//	registry.CoreMetrics().RecordReceived("kafka")
//	registry.CoreMetrics().RecordProcessed("weblog", "ok")
//
// # Component Metrics
//
// Components that carry their own metrics (the worker pool, the storage
// writers) register them through the MetricsRegistrar interface rather
// than the global prometheus registry. Registration is tracked per
// component so a component restart can unregister and re-register
// cleanly:
//
//	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
//	    Namespace: "autobox",
//	    Subsystem: "pool",
//	    Name:      "queue_depth",
//	    Help:      "Number of records waiting in the work queue",
//	})
//	if err := registrar.RegisterGauge("pool", "queue_depth", queueDepth); err != nil {
//	    return err
//	}
//
// Duplicate registration returns an invalid-classified error; callers that
// legitimately re-register call Unregister first.
//
// # HTTP Endpoints
//
// The Server mounts:
//
//   - the metrics path (default /metrics) serving the Prometheus
//     exposition format with OpenMetrics enabled
//   - /health returning a plain "OK" for process liveness
//   - /healthz (when a health.Monitor is attached via WithHealthMonitor)
//     returning the aggregated component health as JSON, with a 503 when
//     any component is unhealthy
//
// Start blocks until the server stops, so run it in its own goroutine and
// call Stop during shutdown.
package metric
