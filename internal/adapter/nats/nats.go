// Package nats implements the event bus ports using NATS: JetStream
// for the durable event subjects and core NATS for the ephemeral
// notification channels.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/albatross-va/albatross/internal/port/eventbus"
)

const streamName = "ALBATROSS"

// Bus implements eventbus.Publisher, eventbus.Subscriber, and
// eventbus.Notifier on a single NATS connection.
type Bus struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream
// stream for the durable event subjects exists.
func Connect(ctx context.Context, url string) (*Bus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamName,
		Subjects:  []string{"events.>"},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Bus{nc: nc, js: js}, nil
}

// Publish sends env to subject and waits for the broker's confirmation,
// so a returned nil means the event is durably stored.
func (b *Bus) Publish(ctx context.Context, subject string, env eventbus.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Header.Set("Event-Type", string(env.Type))
	msg.Data = data

	if _, err := b.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe binds handler to subject under the named durable consumer.
// Handler errors terminate the message: it is not redelivered.
func (b *Bus) Subscribe(ctx context.Context, subject, queue string, handler eventbus.Handler) (func(), error) {
	consumer, err := b.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       queue,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var env eventbus.Envelope
		if err := json.Unmarshal(msg.Data(), &env); err != nil {
			slog.Error("malformed envelope", "subject", msg.Subject(), "error", err)
			if termErr := msg.Term(); termErr != nil {
				slog.Error("nats term failed", "error", termErr)
			}
			return
		}
		if err := handler(context.Background(), env); err != nil {
			slog.Error("event handler failed",
				"subject", msg.Subject(), "aggregate_id", env.AggregateID,
				"sequence", env.Sequence, "error", err)
			if termErr := msg.Term(); termErr != nil {
				slog.Error("nats term failed", "error", termErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// Notify publishes data on channel over core NATS. Delivery is
// fire-and-forget; subscribers that are not connected miss the message.
func (b *Bus) Notify(_ context.Context, channel string, data []byte) error {
	if err := b.nc.Publish(channel, data); err != nil {
		return fmt.Errorf("nats notify %s: %w", channel, err)
	}
	return nil
}

// SubscribeNotify delivers every message on channel to fn.
func (b *Bus) SubscribeNotify(_ context.Context, channel string, fn func(channel string, data []byte)) (func(), error) {
	sub, err := b.nc.Subscribe(channel, func(msg *nats.Msg) {
		fn(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", channel, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("nats unsubscribe failed", "channel", channel, "error", err)
		}
	}, nil
}

// KeyValue creates or opens the named JetStream KV bucket with the
// given entry TTL.
func (b *Bus) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := b.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain gracefully drains subscriptions before closing the connection.
func (b *Bus) Drain() error {
	return b.nc.Drain()
}

// Close shuts down the NATS connection immediately.
func (b *Bus) Close() error {
	b.nc.Close()
	return nil
}

// IsConnected reports whether the bus is currently connected.
func (b *Bus) IsConnected() bool {
	return b.nc != nil && b.nc.IsConnected()
}
