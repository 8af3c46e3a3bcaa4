// Package broker pulls raw record payloads from the upstream message
// broker and feeds them to the worker pool.
//
// Two broker kinds are supported: a Kafka consumer group (franz-go) and a
// NATS JetStream durable pull consumer. Both are hidden behind the Source
// interface so the pool never knows which one it is draining:
//
//	source, err := broker.NewSource(ctx, broker.Deps{
//	    Config:  cfg.Broker,
//	    Logger:  logger,
//	    Metrics: registry.CoreMetrics(),
//	})
//	if err != nil {
//	    return err
//	}
//	defer source.Close()
//
//	for {
//	    payload, err := source.Next(ctx)
//	    if err == broker.ErrIdle {
//	        continue // quiet stream, poll again
//	    }
//	    ...
//	}
//
// # Idle vs. failure
//
// A quiet stream is normal. When no record arrives within the configured
// receive timeout, Next returns ErrIdle and the caller polls again; ErrIdle
// never means the stream ended. Broker trouble comes back as a
// transient-classified error, and context cancellation is returned as-is so
// shutdown is distinguishable from failure.
//
// # Delivery
//
// Both sources fetch in batches and buffer the remainder in memory between
// Next calls. JetStream messages are acked at fetch time, so a record that
// was pulled but not yet handed to a worker is lost if the process dies;
// this mirrors the consumer-group offset behavior on the Kafka side.
//
// Connection churn is reported through the broker connectivity metrics and
// otherwise handled inside the clients; the JetStream connection reconnects
// indefinitely with a capped wait between attempts.
package broker
