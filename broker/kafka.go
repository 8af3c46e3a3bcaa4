package broker

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/metric"
	"github.com/willnx/autobox/pkg/retry"
)

// kafkaSource consumes a topic through a consumer group. Fetched records
// are buffered in memory and handed out one at a time.
type kafkaSource struct {
	client  *kgo.Client
	timeout time.Duration
	logger  *slog.Logger
	metrics *metric.Metrics
	pending [][]byte
}

func newKafkaSource(ctx context.Context, deps Deps) (*kafkaSource, error) {
	cfg := deps.Config.Kafka

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ClientID("autobox"),
		kgo.DialTimeout(10*time.Second),
	)
	if err != nil {
		return nil, errors.WrapInvalid(err, "KafkaSource", "connect", "build consumer client")
	}

	// The client dials lazily; ping so a dead cluster surfaces here instead
	// of on the first poll.
	err = retry.Do(ctx, retry.Quick(), func() error {
		return client.Ping(ctx)
	})
	if err != nil {
		client.Close()
		return nil, errors.WrapTransient(err, "KafkaSource", "connect", "reach cluster")
	}

	if deps.Metrics != nil {
		deps.Metrics.RecordBrokerStatus(true)
	}
	deps.Logger.Info("Connected to Kafka",
		"brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.Group)

	return &kafkaSource{
		client:  client,
		timeout: deps.Config.ReceiveTimeout(),
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}, nil
}

// Next pops a buffered record or polls the cluster for more. A poll that
// comes back empty reports ErrIdle.
func (s *kafkaSource) Next(ctx context.Context) ([]byte, error) {
	if len(s.pending) > 0 {
		return s.pop(), nil
	}

	pollCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fetches := s.client.PollFetches(pollCtx)
	if fetches.IsClientClosed() {
		return nil, errors.WrapFatal(errors.ErrConnectionLost, "KafkaSource", "Next", "poll records")
	}

	var fetchErr error
	for _, fe := range fetches.Errors() {
		// Deadline expiry is the idle path, cancellation is shutdown;
		// neither is a broker problem.
		if stderrors.Is(fe.Err, context.DeadlineExceeded) || stderrors.Is(fe.Err, context.Canceled) {
			continue
		}
		s.logger.Warn("Fetch error",
			"topic", fe.Topic, "partition", fe.Partition, "error", fe.Err)
		fetchErr = fe.Err
	}

	fetches.EachRecord(func(rec *kgo.Record) {
		s.pending = append(s.pending, rec.Value)
	})

	if len(s.pending) > 0 {
		return s.pop(), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, errors.WrapTransient(fetchErr, "KafkaSource", "Next", "poll records")
	}
	return nil, ErrIdle
}

func (s *kafkaSource) pop() []byte {
	payload := s.pending[0]
	s.pending = s.pending[1:]
	return payload
}

// Close leaves the consumer group and releases the client.
func (s *kafkaSource) Close() error {
	if s.metrics != nil {
		s.metrics.RecordBrokerStatus(false)
	}
	s.client.Close()
	return nil
}
