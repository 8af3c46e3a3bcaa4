package pool

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/metric"
	"github.com/willnx/autobox/processor"
)

// Item is one unit of work on the work channel. The retire flag is the
// termination marker: it can never collide with a legitimate payload
// because workers compare the flag, not payload bytes.
type Item struct {
	payload []byte
	retire  bool
}

// Signal is a worker's single end-of-life report. A nil Err is a
// voluntary, completed retirement; anything else is a crash.
type Signal struct {
	WorkerID string
	Err      error
}

// handle is the coordinator's record of a live worker. The done channel is
// used only to join workers during final shutdown, never to decide
// membership; membership changes exclusively through Signals.
type handle struct {
	id   string
	done chan struct{}
}

// worker drains the work channel through its private processor. Exactly
// one Signal is sent when the loop exits, and the processor is flushed
// before that Signal on every path, so a retirement acknowledgement always
// means buffered data reached the store.
type worker struct {
	id       string
	category string
	proc     processor.Processor
	work     <-chan Item
	signals  chan<- Signal
	done     chan struct{}
	logger   *slog.Logger
	core     *metric.Metrics
	metrics  *Metrics
}

func (w *worker) run() {
	defer close(w.done)
	w.logger.Info("worker starting")

	failure := w.drain()

	flushErr := w.flush()
	if failure == nil {
		if flushErr != nil {
			// retirement stays clean; the marker asked us to stop and we did
			w.logger.Error("flush failed during retirement", "error", flushErr)
		}
		w.signals <- Signal{WorkerID: w.id}
		w.logger.Info("worker retired")
		return
	}
	if flushErr != nil {
		w.logger.Error("best-effort flush failed after worker error", "error", flushErr)
	}
	w.signals <- Signal{WorkerID: w.id, Err: failure}
	w.logger.Error("worker crashed", "error", failure)
}

// drain processes items until a termination marker (returns nil) or an
// unrecoverable error (returns it). Panics in Process are contained here
// so one worker's fault cannot take down the coordinator or its siblings.
func (w *worker) drain() (failure error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panic", "panic", r, "stack", string(debug.Stack()))
			failure = errors.WrapFatal(fmt.Errorf("panic: %v", r), "Worker", "drain", "process record")
		}
	}()

	for item := range w.work {
		if item.retire {
			return nil
		}

		start := time.Now()
		err := w.proc.Process(item.payload)
		status := "ok"
		switch {
		case err == nil:
		case errors.IsInvalid(err):
			// defective record; drop it and keep going
			status = "dropped"
			w.logger.Warn("dropping invalid record", "error", err)
		default:
			status = "failed"
			w.observe(status, time.Since(start))
			return err
		}
		w.observe(status, time.Since(start))
	}
	return nil
}

// flush runs the processor's flush hook, containing panics the same way
// drain does.
func (w *worker) flush() (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panic during flush", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.proc.Flush()
}

func (w *worker) observe(status string, elapsed time.Duration) {
	if w.core != nil {
		w.core.RecordProcessed(w.category, status)
	}
	if w.metrics != nil {
		w.metrics.processingTime.WithLabelValues(status).Observe(elapsed.Seconds())
	}
}
