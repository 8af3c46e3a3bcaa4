// Package health provides health monitoring for pipeline components.
//
// # Overview
//
// Each long-lived component (the worker pool, the broker source, the store
// writers) reports its state to a shared Monitor. The monitor aggregates
// those per-component statuses into a single system status served over HTTP
// by Handler.
//
// Three states exist:
//
//   - healthy: the component is doing its job
//   - degraded: making progress but impaired (e.g. store writes retrying)
//   - unhealthy: not functioning (e.g. broker unreachable, pool dead)
//
// Aggregation is pessimistic: any unhealthy component makes the system
// unhealthy; otherwise any degraded component makes it degraded.
//
// # Usage
//
// Components push status changes as they happen:
//
//	monitor.UpdateHealthy("pool", "6 workers running")
//	monitor.Update("pool", health.NewHealthy("pool", "scaling up").
//	    WithMetrics(&health.Metrics{Workers: 8, QueueDepth: 230}))
//
// Errors go through NewUnhealthyFromError so credentials, addresses, and
// paths are scrubbed before they can appear on the health endpoint:
//
//	monitor.Update("broker", health.NewUnhealthyFromError("broker", err))
//
// The HTTP surface:
//
//	mux.HandleFunc("/healthz", health.Handler(monitor, "autobox"))
//
// Unhealthy aggregates answer 503; healthy and degraded answer 200.
//
// # Thread Safety
//
// Monitor is safe for concurrent use. Status values are copied on read, so
// callers can never mutate monitor state through a returned Status.
package health
