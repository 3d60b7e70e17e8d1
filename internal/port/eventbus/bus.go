// Package eventbus defines the ports for the durable event bus and the
// ephemeral notification fan-out.
package eventbus

import (
	"context"

	"github.com/albatross-va/albatross/internal/domain/event"
)

// Subject constants for the durable event subjects.
const (
	SubjectTenantEvents = "events.tenant"
	SubjectUserEvents   = "events.user"
	SubjectPirepEvents  = "events.pirep"
)

// Envelope is the wire form of a persisted domain event as carried on
// the durable bus.
type Envelope struct {
	AggregateID string     `json:"aggregate_id"`
	Sequence    uint64     `json:"sequence"`
	Type        event.Type `json:"event_type"`
	Payload     []byte     `json:"payload"`
}

// Handler processes one delivered envelope. Returning nil acknowledges
// the message; returning an error discards it without redelivery.
type Handler func(ctx context.Context, env Envelope) error

// Publisher is the port for durably publishing committed events.
type Publisher interface {
	// Publish sends env to subject and waits for broker confirmation.
	Publish(ctx context.Context, subject string, env Envelope) error
}

// Subscriber is the port for durable, queue-group consumption.
type Subscriber interface {
	// Subscribe binds handler to subject under the named durable queue.
	// Each message is delivered to exactly one member of the queue. The
	// returned function cancels the subscription.
	Subscribe(ctx context.Context, subject, queue string, handler Handler) (cancel func(), err error)
}

// Notifier is the port for fire-and-forget realtime notifications.
// Messages are not persisted; absent subscribers miss them.
type Notifier interface {
	// Notify publishes data on the named channel.
	Notify(ctx context.Context, channel string, data []byte) error

	// SubscribeNotify delivers every message on channel to fn until the
	// returned cancel function is called.
	SubscribeNotify(ctx context.Context, channel string, fn func(channel string, data []byte)) (cancel func(), err error)
}

// SubjectFor maps an event type to its durable subject.
func SubjectFor(t event.Type) string {
	switch t {
	case event.TypeTenantCreated:
		return SubjectTenantEvents
	case event.TypePirepSubmitted:
		return SubjectPirepEvents
	default:
		return SubjectUserEvents
	}
}
