// Package pool implements an adaptive worker pool that moves records from
// a broker stream into per-category processors.
//
// # Overview
//
// The pool package provides the Manager, the long-running coordinator of
// the pipeline:
//   - A single receive loop pulls records from a broker.Source onto a
//     bounded work queue
//   - A fleet of worker goroutines drains the queue through private
//     processor.Processor instances
//   - The fleet grows and shrinks with the queue depth, between one worker
//     and a configured ceiling
//   - Failures follow a cooldown-then-exit discipline so a supervisor
//     restart leaves a visible gap instead of a crash loop
//
// # Core Concepts
//
// Depth-Driven Scaling:
//
// Queue depth is the only scaling signal. Every few thousand records
// (batch size), provided enough time has passed since the previous pass
// (check interval), the Manager samples the queue:
//   - Depth above the high water mark: workers are falling behind, spawn
//     scale_up_step more (capped at max_workers)
//   - Depth below the low water mark: capacity is idle, retire one worker
//   - Otherwise: hold
//
// Both gates must open for a pass to run, and the interval timer restarts
// only when a pass actually runs. A quiet stream cannot trigger thrashing,
// and a flood cannot force a pass per record.
//
// Retirement Markers:
//
// The Manager never stops a worker directly. To shrink, it enqueues a
// retirement marker on the same work queue the records flow through.
// Whichever worker dequeues the marker flushes its processor and exits.
// Because the marker travels behind the records ahead of it, retirement
// never reorders or drops work. One marker per scaling pass, and never
// when only one worker remains.
//
// End-of-Life Signals:
//
// Each worker sends exactly one Signal when it exits: a nil error for a
// voluntary retirement, the failure for a crash. Fleet membership changes
// only by consuming these Signals during a scaling pass. The Manager never
// inspects goroutine state to decide who is alive; a worker that has not
// signalled is a member, full stop.
//
// Crash Handling:
//
// A worker crash (a record the store rejected for transient reasons, or a
// panic in processor code) removes that worker from the fleet. If some but
// not all tracked workers crashed since the last pass, the next adjustment
// spawns one replacement on top of whatever the depth called for. If every
// tracked worker crashed, the pipeline is considered dead and the Manager
// fails out rather than respawning into the same faulty environment.
//
// # Architecture Decisions
//
// Blocking Enqueue as Backpressure:
//
// The receive loop blocks when the work queue is full instead of dropping
// records. The stall stops broker consumption, the queue depth pins at
// capacity, and the next scaling pass reads that depth and spawns workers.
// Loss is pushed out to the broker's retention window, which is where a
// streaming system wants it.
//
// Cooldown on Failure:
//
// When the broker fails or the whole fleet dies, Run drains and flushes
// whatever survived, then holds for the cooldown window before returning
// the error. Restarting instantly would hammer a broken dependency and
// produce a sawtooth of partial recoveries; the deliberate pause turns the
// outage into an obvious flat line on dashboards.
//
// Per-Worker Processors:
//
// The factory builds a fresh Processor for every worker, so processors
// need no internal locking and a crashed worker's half-written state dies
// with it. Batched store writers (the usual processor backing) buffer
// per-worker and are flushed before the worker's Signal is sent, so a
// retirement acknowledgement always means the data reached the store.
//
// # Usage
//
//	mgr, err := pool.NewManager(pool.Deps{
//	    Config:     cfg.Pool,
//	    Source:     src,
//	    SourceName: cfg.Broker.Kind,
//	    Factory:    factory,
//	    Category:   cfg.Pipeline.Category,
//	    Logger:     logger,
//	    Registrar:  registry,
//	    Core:       registry.CoreMetrics(),
//	    Monitor:    monitor,
//	})
//	if err != nil {
//	    return err
//	}
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := mgr.Run(ctx); err != nil {
//	    os.Exit(1)
//	}
//
// Run blocks until the context is cancelled (clean shutdown, returns nil)
// or the pipeline fails (returns the cause after the cooldown). Run is
// single-shot; build a new Manager to run again.
//
// # Known Limitations
//
//  1. Scaling reacts at batch boundaries, not per record; a burst shorter
//     than one batch never triggers a pass
//  2. Records are not acknowledged individually; a crash between Process
//     and Flush can lose that worker's buffered batch
//  3. One category per Manager; run one process per category
package pool
