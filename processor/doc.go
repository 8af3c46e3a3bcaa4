// Package processor defines how workers transform records and where the
// transformed data goes.
//
// # Overview
//
// Every record pulled off the broker belongs to one category (weblog,
// dnslog, workerlog, firewall). A category is implemented as a Processor:
// it decrypts the record, reshapes it, and hands the result to a backing
// store. The worker pool stays completely payload-agnostic; it only sees
// the Processor interface.
//
// # Error contract
//
// Process distinguishes two failure kinds through error classification:
//
//   - invalid-classified errors (bad token, bad JSON, unparseable line)
//     mean the record itself is defective. The worker logs and drops it.
//   - any other error means the processor can no longer make progress,
//     typically because the store stopped accepting writes. The worker
//     flushes what it can and stops, and the pool replaces it.
//
// Flush runs exactly once per worker, at the end of its life, and delivers
// anything the processor still has staged.
//
// # Registration
//
// Category packages expose a Register function that adds their factory to
// a Registry under the category name. The categories package wires all
// built-in categories at startup:
//
//	metrics := metric.NewMetricsRegistry()
//	registry := processor.NewRegistry()
//	if err := categories.Register(registry, processor.Deps{
//	    Config:  cfg,
//	    Logger:  logger,
//	    Metrics: metrics.CoreMetrics(),
//	}); err != nil {
//	    return err
//	}
//
// The pool then builds one fresh Processor per spawned worker, so each
// worker owns private store connections and staging buffers:
//
//	proc, err := registry.New(cfg.Pipeline.Category)
//
// # Payload envelope
//
// Producers fernet-encrypt every payload. Log categories wrap a JSON
// envelope {"name": service, "log": line}; the firewall category wraps the
// event fields directly. Decryptor handles verification, optional token-age
// enforcement, and key rotation (several keys in one key file).
package processor
