package broker

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/willnx/autobox/config"
	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/metric"
)

// ErrIdle reports that no record arrived before the receive timeout expired.
// It means the stream is quiet right now, not that it has ended; callers
// simply poll again.
var ErrIdle = stderrors.New("no record available")

// Source is a pull-based stream of raw record payloads.
type Source interface {
	// Next returns the next payload from the stream. It blocks for at most
	// the configured receive timeout and returns ErrIdle when nothing
	// arrived in that window. A context error is returned as-is so callers
	// can tell shutdown apart from broker trouble.
	Next(ctx context.Context) ([]byte, error)

	// Close releases the underlying consumer and connection.
	Close() error
}

// Deps holds runtime dependencies for building a Source.
type Deps struct {
	Config  config.BrokerConfig
	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// NewSource builds the Source selected by the broker kind in the
// configuration. The context bounds the initial connection attempt.
func NewSource(ctx context.Context, deps Deps) (Source, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default().With("component", "broker")
	}

	switch deps.Config.Kind {
	case config.BrokerKafka:
		return newKafkaSource(ctx, deps)
	case config.BrokerJetStream:
		return newJetStreamSource(ctx, deps)
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "broker", "NewSource",
			fmt.Sprintf("select broker kind %q", deps.Config.Kind))
	}
}
