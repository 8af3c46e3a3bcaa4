package pool

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/willnx/autobox/broker"
	"github.com/willnx/autobox/config"
	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/health"
	"github.com/willnx/autobox/metric"
	"github.com/willnx/autobox/processor"
)

// Deps holds runtime dependencies for building a Manager.
type Deps struct {
	Config config.PoolConfig

	// Source supplies raw record payloads. SourceName is the broker kind
	// used as the source label on receive counters.
	Source     broker.Source
	SourceName string

	// Factory builds one processor per worker; Category names the record
	// category this deployment handles.
	Factory  processor.Factory
	Category string

	Logger    *slog.Logger
	Registrar metric.MetricsRegistrar
	Core      *metric.Metrics
	Monitor   *health.Monitor
}

// Manager owns the worker fleet. It pulls records from the broker onto a
// bounded work queue, and every few thousand records compares the queue
// depth against the high and low water marks to decide whether the fleet
// grows, shrinks, or holds. Workers leave the fleet only by reporting a
// Signal; the manager never inspects goroutine liveness directly.
type Manager struct {
	cfg        config.PoolConfig
	source     broker.Source
	sourceName string
	factory    processor.Factory
	category   string
	logger     *slog.Logger
	metrics    *Metrics
	core       *metric.Metrics
	monitor    *health.Monitor

	work    chan Item
	signals chan Signal
	workers []*handle

	mu      sync.Mutex
	running bool
}

// NewManager builds a Manager from validated configuration. The work queue
// is sized to the configured capacity, and the signal channel to the worker
// ceiling so end-of-life reports never block a worker.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Source == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Pool", "NewManager", "record source validation")
	}
	if deps.Factory == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Pool", "NewManager", "processor factory validation")
	}
	if deps.Category == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Pool", "NewManager", "record category validation")
	}
	if deps.Config.QueueCapacity < 1 || deps.Config.MaxWorkers < 1 || deps.Config.BatchSize < 1 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Pool", "NewManager", "pool sizing validation")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newMetrics(deps.Registrar)
	if err != nil {
		return nil, errors.Wrap(err, "Pool", "NewManager", "pool metric registration")
	}

	return &Manager{
		cfg:        deps.Config,
		source:     deps.Source,
		sourceName: deps.SourceName,
		factory:    deps.Factory,
		category:   deps.Category,
		logger:     logger.With("component", "pool"),
		metrics:    metrics,
		core:       deps.Core,
		monitor:    deps.Monitor,
		work:       make(chan Item, deps.Config.QueueCapacity),
		signals:    make(chan Signal, deps.Config.MaxWorkers),
	}, nil
}

// Run consumes records until ctx is cancelled. Cancellation retires the
// fleet, waits for buffered data to flush, and returns nil. Any other exit
// is a pipeline failure: the fleet is drained, the cooldown window passes,
// and the cause is returned so the process exits non-zero.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.markRunning(); err != nil {
		return err
	}

	m.logger.Info("starting worker pool",
		"category", m.category,
		"queue_capacity", m.cfg.QueueCapacity,
		"max_workers", m.cfg.MaxWorkers,
		"batch_size", m.cfg.BatchSize,
		"check_interval", m.cfg.CheckInterval())

	m.adjust(1)
	if len(m.workers) == 0 {
		return m.fail(ctx, errors.WrapFatal(errors.ErrAllWorkersDead, "Pool", "Run", "initial worker start"))
	}
	if m.monitor != nil {
		m.monitor.UpdateHealthy("pool", "running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if m.metrics != nil {
		go m.depthUpdater(runCtx)
	}

	if err := m.produce(ctx); err != nil {
		return m.fail(ctx, err)
	}

	m.logger.Info("shutdown requested; retiring worker pool")
	m.shutdown()
	return nil
}

// markRunning makes Run single-shot.
func (m *Manager) markRunning() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.WrapInvalid(stderrors.New("manager already running"), "Pool", "Run", "start")
	}
	m.running = true
	return nil
}

// produce is the receive loop. It blocks on the work channel when the
// queue is full, which is what pushes the depth over the high water mark
// and triggers a scale-up on the next pass. Scaling passes run at batch
// boundaries, and the pass timer restarts only when a pass actually runs,
// so a slow trickle of records cannot force a pass per record.
func (m *Manager) produce(ctx context.Context) error {
	produced := 0
	lastCheck := time.Now()

	for {
		payload, err := m.source.Next(ctx)
		switch {
		case err == nil:
			select {
			case m.work <- Item{payload: payload}:
			case <-ctx.Done():
				return nil
			}
			produced++
			if m.core != nil {
				m.core.RecordReceived(m.sourceName)
			}
		case stderrors.Is(err, broker.ErrIdle):
			if m.core != nil {
				m.core.RecordIdleReceive(m.sourceName)
			}
			continue
		case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return errors.Wrap(err, "Pool", "Run", "record receive")
		}

		if produced >= m.cfg.BatchSize {
			produced = 0
			if time.Since(lastCheck) > m.cfg.CheckInterval() {
				if err := m.scalePass(); err != nil {
					return err
				}
				lastCheck = time.Now()
			}
		}
	}
}

// scalePass reconciles departed workers, assesses the queue depth, and
// applies the combined adjustment.
func (m *Manager) scalePass() error {
	scalier, err := m.reconcile()
	if err != nil {
		return err
	}
	m.adjust(m.assess() + scalier)
	return nil
}

// reconcile drains pending end-of-life Signals and prunes the departed
// workers from the fleet. It returns 1 when some but not all tracked
// workers crashed, so the next adjustment replaces the lost capacity. When
// every tracked worker crashed the whole fleet is gone and reconcile
// returns a fatal error instead.
func (m *Manager) reconcile() (int, error) {
	tracked := len(m.workers)
	departed := make(map[string]bool)
	crashed := 0

drain:
	for {
		select {
		case sig := <-m.signals:
			departed[sig.WorkerID] = true
			if sig.Err != nil {
				crashed++
				m.logger.Error("worker crashed", "worker_id", sig.WorkerID, "error", sig.Err)
				if m.core != nil {
					m.core.RecordError("pool", errors.Classify(sig.Err).String())
				}
				if m.metrics != nil {
					m.metrics.workersCrashed.Inc()
				}
			} else {
				if m.metrics != nil {
					m.metrics.workersRetired.Inc()
				}
			}
		default:
			break drain
		}
	}

	if len(departed) > 0 {
		kept := m.workers[:0]
		for _, h := range m.workers {
			if !departed[h.id] {
				kept = append(kept, h)
			}
		}
		m.workers = kept
		m.logger.Info("pruned departed workers",
			"departed", len(departed), "crashed", crashed, "pool_size", len(m.workers))
	}

	if tracked > 0 && crashed == tracked {
		return 0, errors.WrapFatal(errors.ErrAllWorkersDead, "Pool", "reconcile", "crashed worker replacement")
	}
	if crashed > 0 {
		if m.monitor != nil {
			m.monitor.UpdateDegraded("pool", "workers crashed since last scaling pass")
		}
		return 1, nil
	}
	if m.monitor != nil {
		m.monitor.UpdateHealthy("pool", "running")
	}
	return 0, nil
}

// assess compares the queue depth against the water marks and returns the
// size delta the depth calls for.
func (m *Manager) assess() int {
	depth := len(m.work)
	if m.metrics != nil {
		m.metrics.queueDepth.Set(float64(depth))
	}

	switch {
	case depth > m.cfg.DepthHighWater:
		m.logger.Info("queue depth above high water mark", "depth", depth, "pool_size", len(m.workers))
		if m.metrics != nil {
			m.metrics.scaleDecisions.WithLabelValues("up").Inc()
		}
		return m.cfg.ScaleUpStep
	case depth < m.cfg.DepthLowWater:
		if m.metrics != nil {
			m.metrics.scaleDecisions.WithLabelValues("down").Inc()
		}
		return -m.cfg.ScaleDownStep
	default:
		if m.metrics != nil {
			m.metrics.scaleDecisions.WithLabelValues("hold").Inc()
		}
		return 0
	}
}

// adjust applies a size delta. Growth is capped at the worker ceiling. A
// shrink queues exactly one retirement marker per pass regardless of the
// delta's magnitude, and never shrinks a fleet of one; an empty fleet is
// restored to one worker no matter what the depth says.
func (m *Manager) adjust(need int) {
	if len(m.workers) == 0 && need < 1 {
		need = 1
	}

	switch {
	case need < 0:
		if len(m.workers) > 1 {
			select {
			case m.work <- Item{retire: true}:
				m.logger.Info("queued worker retirement", "pool_size", len(m.workers))
			default:
				// Queue full. The depth reading that asked for a shrink
				// is stale, so dropping the marker is the right call.
				m.logger.Warn("work queue full; skipped worker retirement")
			}
		}
	case need > 0:
		room := m.cfg.MaxWorkers - len(m.workers)
		if need > room {
			need = room
		}
		for i := 0; i < need; i++ {
			m.spawnWorker()
		}
	}

	if m.metrics != nil {
		m.metrics.size.Set(float64(len(m.workers)))
	}
}

// spawnWorker builds a processor and starts a worker around it. A factory
// failure skips this worker; the next scaling pass tries again.
func (m *Manager) spawnWorker() {
	proc, err := m.factory()
	if err != nil {
		m.logger.Error("processor construction failed; worker not started", "error", err)
		if m.core != nil {
			m.core.RecordError("pool", errors.Classify(err).String())
		}
		return
	}

	h := &handle{id: uuid.NewString(), done: make(chan struct{})}
	w := &worker{
		id:       h.id,
		category: m.category,
		proc:     proc,
		work:     m.work,
		signals:  m.signals,
		done:     h.done,
		logger:   m.logger.With("worker_id", h.id),
		core:     m.core,
		metrics:  m.metrics,
	}
	m.workers = append(m.workers, h)
	go w.run()

	if m.metrics != nil {
		m.metrics.workersSpawned.Inc()
	}
	m.logger.Info("worker started", "worker_id", h.id, "pool_size", len(m.workers))
}

// shutdown retires every tracked worker and waits for them to flush. Each
// worker gets its own retirement marker, and each departure is joined on
// the worker's done channel, all bounded by the shutdown timeout. A worker
// that cannot finish in time is abandoned; the process is exiting anyway.
func (m *Manager) shutdown() {
	deadline, cancel := context.WithTimeout(context.Background(), m.cfg.ShutdownTimeout())
	defer cancel()

markers:
	for range m.workers {
		select {
		case m.work <- Item{retire: true}:
		case <-deadline.Done():
			m.logger.Warn("timed out queueing retirement markers")
			break markers
		}
	}

	for _, h := range m.workers {
		select {
		case <-h.done:
		case <-deadline.Done():
			m.logger.Warn("abandoning worker still draining", "worker_id", h.id)
		}
	}

	// Collect the final reports so crashes during the last flush are not
	// silently lost.
final:
	for {
		select {
		case sig := <-m.signals:
			if sig.Err != nil {
				m.logger.Error("worker crashed during shutdown", "worker_id", sig.WorkerID, "error", sig.Err)
				if m.metrics != nil {
					m.metrics.workersCrashed.Inc()
				}
			} else if m.metrics != nil {
				m.metrics.workersRetired.Inc()
			}
		default:
			break final
		}
	}

	m.workers = m.workers[:0]
	if m.metrics != nil {
		m.metrics.size.Set(0)
		m.metrics.queueDepth.Set(float64(len(m.work)))
	}
	m.logger.Info("worker pool stopped", "records_left", len(m.work))
}

// fail reports a pipeline failure, drains the fleet, and holds for the
// cooldown window before handing the cause back. The pause keeps a
// supervisor from hammering a broken broker with instant restarts, and the
// resulting gap in stored data is what makes the outage visible to
// operators.
func (m *Manager) fail(ctx context.Context, cause error) error {
	m.logger.Error("pipeline failure; draining workers and entering cooldown",
		"error", cause, "cooldown", m.cfg.Cooldown())
	if m.monitor != nil {
		m.monitor.UpdateUnhealthy("pool", cause.Error())
	}
	if m.core != nil {
		m.core.RecordError("pool", errors.Classify(cause).String())
	}

	m.shutdown()

	select {
	case <-time.After(m.cfg.Cooldown()):
	case <-ctx.Done():
		m.logger.Info("cooldown interrupted by shutdown")
	}
	return cause
}

// depthUpdater samples the queue depth once a second between scaling
// passes. Channel length is safe to read concurrently, and the sampled
// gauge keeps dashboards honest across the long stretches where no pass
// runs.
func (m *Manager) depthUpdater(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.metrics.queueDepth.Set(float64(len(m.work)))
		}
	}
}
