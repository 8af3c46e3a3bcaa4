// Package autobox implements an adaptive worker-pool service that drains a
// continuous record stream from a message broker and persists transformed
// records to a search index or a time-series database.
//
// # Overview
//
// Autobox sits between a broker and a storage backend. A single coordinator
// pulls raw records off the broker and enqueues them on a bounded channel; a
// fleet of workers drains the channel, transforms each record according to
// its log category, and writes the result to storage. The fleet grows and
// shrinks with observed queue depth, so throughput tracks the stream without
// hand-tuning a worker count per deployment.
//
//	┌──────────────┐      ┌───────────────┐      ┌──────────────┐
//	│    Broker    │─────→│ Bounded Queue │─────→│   Workers    │
//	│  Kafka / JS  │      │ (work channel)│      │ transform +  │
//	└──────────────┘      └───────┬───────┘      │   persist    │
//	                              │              └──────┬───────┘
//	                        depth sampled               │
//	                              ↓                     ↓
//	                      ┌──────────────┐      ┌───────────────┐
//	                      │ scaling pass │      │ Elasticsearch │
//	                      │ grow / shrink│      │  or InfluxDB  │
//	                      └──────────────┘      └───────────────┘
//
// Both ends are pluggable behind small interfaces: broker.Source yields raw
// payloads from Kafka or NATS JetStream, and each log category's processor
// owns its parse/transform/persist logic down to the storage client.
//
// # Packages
//
// Pipeline core:
//   - pool: adaptive worker pool (scaling policy, worker lifecycle, signals)
//   - broker: record sources for Kafka and NATS JetStream
//   - processor: per-category record processors and the category registry
//   - storage/elastic: buffered Elasticsearch persistence
//   - storage/influx: staged InfluxDB persistence
//
// Infrastructure:
//   - config: JSON configuration loading and validation
//   - errors: structured error wrapping and classification
//   - health: component health registry for readiness reporting
//   - metric: Prometheus metrics registry and HTTP exposition
//   - pkg/retry: bounded retry with exponential backoff
//
// # Usage
//
// Build and run with a JSON config:
//
//	go build -o bin/autobox ./cmd/autobox
//	./bin/autobox --config configs/example.json
//
//	# Validate a config without starting the pipeline
//	./bin/autobox --config configs/example.json --validate
//
// The config selects the broker kind, the log category to process, the
// storage backend credentials, and the pool's scaling knobs. See
// configs/example.json for a complete annotated starting point and the pool
// package documentation for how the scaling knobs interact.
//
// # Design Principles
//
// Backpressure over buffering:
//   - The work queue is bounded and the coordinator blocks when it fills.
//   - Broker offsets advance only as records are handed to workers.
//
// Scale on evidence, not prediction:
//   - Depth above the high-water mark grows the fleet; depth below the
//     low-water mark shrinks it. Everything in between holds steady.
//   - Worker crashes feed back into the same pass as replacements.
//
// Fail loudly, restart cleanly:
//   - A dead fleet or a broken broker drains what it can, holds through a
//     cooldown, and exits nonzero for the supervisor to restart.
package autobox
