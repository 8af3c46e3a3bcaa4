package broker

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/willnx/autobox/errors"
	"github.com/willnx/autobox/metric"
	"github.com/willnx/autobox/pkg/retry"
)

// fetchBatchSize bounds how many messages a single pull request asks for.
// Pulled messages sit in the pending buffer until the pool takes them.
const fetchBatchSize = 128

// jetStreamSource consumes a stream through a durable pull consumer.
type jetStreamSource struct {
	conn     *nats.Conn
	consumer jetstream.Consumer
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metric.Metrics
	pending  [][]byte
}

func newJetStreamSource(ctx context.Context, deps Deps) (*jetStreamSource, error) {
	cfg := deps.Config.JetStream

	s := &jetStreamSource{
		timeout: deps.Config.ReceiveTimeout(),
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}

	opts := []nats.Option{
		nats.Name("autobox"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.Timeout(10 * time.Second),
		nats.DisconnectErrHandler(s.handleDisconnect),
		nats.ReconnectHandler(s.handleReconnect),
		nats.ClosedHandler(s.handleClosed),
	}

	url := strings.Join(cfg.URLs, ",")
	err := retry.Do(ctx, retry.Quick(), func() error {
		conn, err := nats.Connect(url, opts...)
		if err != nil {
			return err
		}
		s.conn = conn
		return nil
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "JetStreamSource", "connect", "establish connection")
	}

	js, err := jetstream.New(s.conn)
	if err != nil {
		s.conn.Close()
		return nil, errors.WrapFatal(err, "JetStreamSource", "connect", "initialize JetStream")
	}

	durable := cfg.Durable
	if durable == "" {
		durable = "autobox"
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, cfg.Stream, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		s.conn.Close()
		return nil, errors.WrapTransient(err, "JetStreamSource", "connect", "create durable consumer")
	}
	s.consumer = consumer

	if s.metrics != nil {
		s.metrics.RecordBrokerStatus(true)
	}
	s.logger.Info("Connected to JetStream",
		"urls", cfg.URLs, "stream", cfg.Stream, "subject", cfg.Subject, "durable", durable)

	return s, nil
}

// Next pops a buffered record or pulls the next batch from the stream.
// Messages are acked as they are pulled; delivery into the work queue is
// in-process from there.
func (s *jetStreamSource) Next(ctx context.Context) ([]byte, error) {
	if len(s.pending) > 0 {
		return s.pop(), nil
	}

	batch, err := s.consumer.Fetch(fetchBatchSize, jetstream.FetchMaxWait(s.timeout))
	if err != nil {
		return nil, errors.WrapTransient(err, "JetStreamSource", "Next", "fetch records")
	}

	msgs := batch.Messages()
drain:
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				break drain
			}
			if err := msg.Ack(); err != nil {
				s.logger.Warn("Ack failed", "error", err)
			}
			s.pending = append(s.pending, msg.Data())
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := batch.Error(); err != nil && !stderrors.Is(err, nats.ErrTimeout) {
		if len(s.pending) == 0 {
			return nil, errors.WrapTransient(err, "JetStreamSource", "Next", "fetch records")
		}
		s.logger.Warn("Fetch batch error", "error", err)
	}

	if len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrIdle
	}
	return s.pop(), nil
}

func (s *jetStreamSource) pop() []byte {
	payload := s.pending[0]
	s.pending = s.pending[1:]
	return payload
}

// Close drains and closes the connection.
func (s *jetStreamSource) Close() error {
	if s.metrics != nil {
		s.metrics.RecordBrokerStatus(false)
	}
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return errors.WrapTransient(err, "JetStreamSource", "Close", "drain connection")
	}
	return nil
}

func (s *jetStreamSource) handleDisconnect(_ *nats.Conn, err error) {
	if s.metrics != nil {
		s.metrics.RecordBrokerStatus(false)
	}
	if err != nil {
		s.logger.Warn("Broker connection lost", "error", err)
	}
}

func (s *jetStreamSource) handleReconnect(nc *nats.Conn) {
	if s.metrics != nil {
		s.metrics.RecordBrokerStatus(true)
		s.metrics.RecordBrokerReconnect()
	}
	s.logger.Info("Broker connection restored", "url", nc.ConnectedUrl())
}

func (s *jetStreamSource) handleClosed(_ *nats.Conn) {
	if s.metrics != nil {
		s.metrics.RecordBrokerStatus(false)
	}
	s.logger.Debug("Broker connection closed")
}
