// Package bus wraps github.com/nats-io/nats.go's JetStream client as
// the partitioned message bus connection used by the XML Stream
// Consumer (C7): a JetStream durable pull consumer stands in for the
// spec's generic "partitioned message stream with consumer group,"
// playing the role the original's 4-host Kafka consumer group played
// in original_source/ingestion/src/kvkafka.rs. Adapted from the
// teacher's pkg/nats/client.go connection-option wiring (reconnect and
// error handlers), generalized from a plain pub/sub client to a
// JetStream pull-consumer client.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/metno/lard/pkg/log"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Config configures the bus connection.
type Config struct {
	Address     string
	Subject     string
	StreamName  string
	StreamGroup string // durable consumer name; the stream_group of SPEC_FULL.md §4.9
}

// Consumer is a single-stream durable pull consumer.
type Consumer struct {
	conn     *nats.Conn
	consumer jetstream.Consumer
	subject  string
}

// Connect dials the bus and binds (creating if necessary) a durable
// pull consumer named cfg.StreamGroup on cfg.StreamName, filtered to
// cfg.Subject.
func Connect(ctx context.Context, cfg Config) (*Consumer, error) {
	opts := []nats.Option{
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("bus: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("bus: reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Errorf("bus: error: %v", err)
		}),
	}

	nc, err := nats.Connect(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("bus: connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: jetstream: %w", err)
	}

	stream, err := js.Stream(ctx, cfg.StreamName)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: stream %q: %w", cfg.StreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:       cfg.StreamGroup,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: consumer %q: %w", cfg.StreamGroup, err)
	}

	log.Infof("bus: connected to %s, subject=%s group=%s", cfg.Address, cfg.Subject, cfg.StreamGroup)
	return &Consumer{conn: nc, consumer: consumer, subject: cfg.Subject}, nil
}

// Handler processes one message's raw payload. Returning an error does
// not nak/reject the message: Run logs the error and still acks it, so
// a failed message does not block offset commit.
type Handler func(payload []byte) error

// Run fetches batches and invokes handler for each message, committing
// (acking) after a successful fetch-batch, per §4.6: "Offsets are
// committed to the bus after a successful fetch-batch." A failed fetch
// backs off 5 seconds and retries, matching kvkafka.rs's read_kafka
// retry loop. Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := c.consumer.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			log.Errorf("bus: fetch error: %v, retrying in 5 seconds...", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for msg := range batch.Messages() {
			if err := handler(msg.Data()); err != nil {
				log.Errorf("bus: handler error: %v", err)
			}
			if err := msg.Ack(); err != nil {
				log.Warnf("bus: ack failed: %v", err)
			}
		}
		if err := batch.Error(); err != nil {
			log.Errorf("bus: batch error: %v", err)
		}
	}
}

// Close closes the underlying NATS connection.
func (c *Consumer) Close() {
	c.conn.Close()
}
