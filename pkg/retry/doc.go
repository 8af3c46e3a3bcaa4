// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with exponential backoff, used
// throughout autobox to absorb transient failures: broker connects at startup,
// search-index writes, and time-series writes.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (per-record store writes)
//   - Quick(): 10 attempts, 50ms-1s delay (broker connects at startup)
//   - Persistent(): 30 attempts, 200ms-10s delay (waiting for a store cluster)
//
// # Usage Examples
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return writer.Index(ctx, doc)
//	})
//
// Retry with result:
//
//	client, err := retry.DoWithResult(ctx, retry.Quick(), func() (*kgo.Client, error) {
//	    return dial(brokers)
//	})
//
// Mark an error so the loop stops immediately:
//
//	return retry.NonRetryable(err)
//
// # Design Philosophy
//
// This package is intentionally minimal:
//
//   - No circuit breakers
//   - No metrics collection (instrument at the call site)
//   - No error classification (callers mark errors NonRetryable)
//   - Just exponential backoff with jitter
//
// # Context Cancellation
//
// All retry operations respect context cancellation and stop immediately when
// the context is cancelled, during operation execution or during backoff delay.
//
// # Thread Safety
//
// All functions are safe for concurrent use. The jitter mechanism uses a
// thread-safe random source to avoid contention.
package retry
