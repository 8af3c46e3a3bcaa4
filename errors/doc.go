// Package errors provides standardized error handling for autobox components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// the log processing pipeline: Transient (temporary, retryable), Invalid
// (bad input, non-retryable), and Fatal (unrecoverable, stop processing).
//
// Classification is what lets the worker pool separate "this one record was
// garbage" from "this worker can no longer do its job": workers log and drop
// records whose errors classify as Invalid, crash on everything else, and the
// manager aborts the process on Fatal supervision errors such as
// ErrAllWorkersDead.
//
// # Error Classification
//
// Errors are classified based on their type or content:
//
//   - Transient: network timeouts, connection loss, storage temporarily
//     unavailable (retry recommended)
//   - Invalid: undecryptable payloads, malformed envelopes, unparseable log
//     lines (drop the record, do not retry)
//   - Fatal: bad configuration, the whole pool dead (stop processing)
//
// The classification system supports errors.Is(), errors.As(), and error
// wrapping chains.
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if token == nil {
//	    return errors.ErrDecryptionFailed
//	}
//
// Wrap errors with context for debugging:
//
//	if err := store.Write(doc); err != nil {
//	    return errors.Wrap(err, "ElasticWriter", "Write", "index document")
//	}
//
// Check classification to decide drop versus crash:
//
//	if err := proc.Process(payload); err != nil {
//	    if errors.IsInvalid(err) {
//	        logger.Warn("dropping malformed record", "error", err)
//	        continue
//	    }
//	    return err // crash the worker
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// The generic Wrap() preserves the original error's classification.
//
// # Thread Safety
//
// All classification and wrapping operations are thread-safe. Error variables
// are immutable and safe for concurrent access.
package errors
