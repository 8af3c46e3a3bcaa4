// Package influx persists firewall events into a time-series store.
package influx

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/willnx/autobox/config"
	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/metric"
	"github.com/willnx/autobox/pkg/retry"
)

// flushTimeout bounds the final write during Flush, which runs without a
// caller context.
const flushTimeout = 30 * time.Second

// Writer stages points in memory and writes them in batches. A batch goes
// out when the stage outgrows the configured size or enough time has passed
// since the last write, whichever comes first. Writes are blocking so
// failures surface to the calling worker.
//
// A Writer belongs to a single worker goroutine and is not safe for
// concurrent use.
type Writer struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	maxStaged   int
	stageAge    time.Duration
	logger      *slog.Logger
	metrics     *metric.Metrics
	retryCfg    retry.Config

	stage     []*write.Point
	lastWrite time.Time
}

// Deps holds runtime dependencies for the Writer.
type Deps struct {
	Config      config.InfluxConfig
	Measurement string // record category, e.g. "firewall"
	Logger      *slog.Logger
	Metrics     *metric.Metrics
}

// NewWriter builds a Writer for records in the given measurement.
func NewWriter(deps Deps) (*Writer, error) {
	if deps.Measurement == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"InfluxWriter", "NewWriter", "resolve measurement")
	}
	if deps.Config.URL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig,
			"InfluxWriter", "NewWriter", "resolve store URL")
	}

	token, err := deps.Config.AuthToken()
	if err != nil {
		return nil, err
	}

	client := influxdb2.NewClient(deps.Config.URL, token)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "influx-writer", "measurement", deps.Measurement)
	}

	return &Writer{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(deps.Config.Org, deps.Config.Bucket),
		measurement: deps.Measurement,
		maxStaged:   deps.Config.MaxStaged,
		stageAge:    deps.Config.StageAge(),
		logger:      logger,
		metrics:     deps.Metrics,
		retryCfg:    retry.DefaultConfig(),
		// Grace period on the first write: the stage holds until it fills
		// or ages out, even right after startup.
		lastWrite: time.Now(),
	}, nil
}

// AddPoint stages one event and writes the batch out if the stage is full
// or stale. The returned error reflects the batch write, if one happened.
func (w *Writer) AddPoint(ctx context.Context, tags map[string]string, fields map[string]interface{}, ts time.Time) error {
	w.stage = append(w.stage, write.NewPoint(w.measurement, tags, fields, ts))

	if len(w.stage) > w.maxStaged || time.Since(w.lastWrite) >= w.stageAge {
		return w.writeStage(ctx)
	}
	return nil
}

// Staged reports how many points are waiting for the next batch write.
func (w *Writer) Staged() int {
	return len(w.stage)
}

// writeStage pushes the staged points in one batch. On success the stage
// resets. On a rejected batch (bad points) the stage is dropped, since the
// same points can never succeed. On transient failure the stage is kept so
// a later flush can still deliver it.
func (w *Writer) writeStage(ctx context.Context) error {
	if len(w.stage) == 0 {
		w.lastWrite = time.Now()
		return nil
	}

	start := time.Now()
	err := retry.Do(ctx, w.retryCfg, func() error {
		werr := w.writeAPI.WritePoint(ctx, w.stage...)
		if werr != nil && isRejected(werr) {
			return retry.NonRetryable(werr)
		}
		return werr
	})

	if w.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		w.metrics.RecordStoreWrite("influx", status)
		w.metrics.RecordStoreWriteDuration("influx", time.Since(start))
	}

	if err != nil {
		if retry.IsNonRetryable(err) {
			dropped := len(w.stage)
			w.stage = w.stage[:0]
			w.lastWrite = time.Now()
			w.logger.Error("Batch rejected by store, dropping staged points",
				"points", dropped, "error", err)
			return errors.WrapInvalid(err, "InfluxWriter", "writeStage", "write batch")
		}
		return errors.WrapTransient(err, "InfluxWriter", "writeStage", "write batch")
	}

	w.stage = w.stage[:0]
	w.lastWrite = time.Now()
	return nil
}

// isRejected reports whether the store refused the batch outright, meaning
// a retry with the same points cannot succeed.
func isRejected(err error) bool {
	var herr *influxhttp.Error
	if stderrors.As(err, &herr) {
		return herr.StatusCode >= 400 && herr.StatusCode < 500 &&
			herr.StatusCode != 408 && herr.StatusCode != 429
	}
	return false
}

// Flush writes any staged points immediately and releases the client.
func (w *Writer) Flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	err := w.writeStage(ctx)
	w.client.Close()
	return err
}
