// Package projection implements the read-model worker: it consumes the
// durable event queues, folds events into the query tables, and pushes
// notification envelopes to the realtime channels.
package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/albatross-va/albatross/internal/adapter/otel"
	"github.com/albatross-va/albatross/internal/domain/event"
	"github.com/albatross-va/albatross/internal/port/eventbus"
	"github.com/albatross-va/albatross/internal/port/readmodel"
)

// Envelope is the notification wrapper pushed on the ephemeral channels.
type Envelope struct {
	EventType string       `json:"event_type"`
	TS        string       `json:"ts"`
	Data      any          `json:"data"`
	Meta      EnvelopeMeta `json:"meta"`
}

// EnvelopeMeta carries addressing details for clients.
type EnvelopeMeta struct {
	TenantID    *string `json:"tenant_id"`
	AggregateID string  `json:"aggregate_id"`
	Version     uint64  `json:"version"`
}

// Projector applies one decoded event to the read models and emits the
// matching notification. Every write is idempotent, so a redelivered
// message converges instead of failing.
type Projector struct {
	reads    readmodel.Store
	notifier eventbus.Notifier
	metrics  *otel.Metrics
}

// NewProjector creates a projector over the given read model store and
// notification channel.
func NewProjector(reads readmodel.Store, notifier eventbus.Notifier, metrics *otel.Metrics) *Projector {
	return &Projector{reads: reads, notifier: notifier, metrics: metrics}
}

// Apply handles one delivered envelope. A nil return acknowledges the
// message. Unknown event types are logged and acknowledged so newer
// producers do not wedge older workers.
func (p *Projector) Apply(ctx context.Context, env eventbus.Envelope) error {
	if !event.Known(env.Type) {
		slog.Warn("skipping unknown event type",
			"event_type", env.Type, "aggregate_id", env.AggregateID)
		return nil
	}

	ctx, span := otel.StartProjectionSpan(ctx, string(env.Type), env.AggregateID)
	defer span.End()

	ev, err := event.Decode(env.Type, env.Payload)
	if err != nil {
		p.countFailure(ctx)
		return fmt.Errorf("decode %s/%d: %w", env.AggregateID, env.Sequence, err)
	}

	if err := p.apply(ctx, ev, env.Sequence); err != nil {
		p.countFailure(ctx)
		return err
	}
	if p.metrics != nil {
		p.metrics.ProjectionsApplied.Add(ctx, 1)
	}
	return nil
}

func (p *Projector) countFailure(ctx context.Context) {
	if p.metrics != nil {
		p.metrics.ProjectionFailures.Add(ctx, 1)
	}
}

func (p *Projector) apply(ctx context.Context, ev event.Event, version uint64) error {
	switch e := ev.(type) {
	case event.TenantCreated:
		return p.applyTenantCreated(ctx, e, version)
	case event.UserRegistered:
		return p.applyUserRegistered(ctx, e, version)
	case event.PasswordChanged:
		return p.applyPasswordChanged(ctx, e, version)
	case event.ApiKeyGenerated:
		return p.applyApiKeyGenerated(ctx, e, version)
	case event.ApiKeyRevoked:
		return p.applyApiKeyRevoked(ctx, e, version)
	case event.UserLoggedIn:
		return p.applyUserLoggedIn(ctx, e, version)
	case event.PirepSubmitted:
		return p.applyPirepSubmitted(ctx, e, version)
	default:
		slog.Warn("no projection for event", "event_type", ev.EventType())
		return nil
	}
}

func (p *Projector) applyTenantCreated(ctx context.Context, e event.TenantCreated, version uint64) error {
	err := p.reads.UpsertTenant(ctx, readmodel.Tenant{
		ID: e.TenantID, Name: e.Name, CreatedAt: e.Timestamp,
	})
	if err != nil {
		return err
	}
	return p.notify(ctx, channelTenantUpdates(e.TenantID), e.EventType(), e,
		EnvelopeMeta{TenantID: &e.TenantID, AggregateID: e.TenantID, Version: version})
}

func (p *Projector) applyUserRegistered(ctx context.Context, e event.UserRegistered, version uint64) error {
	err := p.reads.UpsertUser(ctx, readmodel.User{
		ID: e.UserID, Username: e.Username, Email: e.Email, Role: e.Role,
		TenantID: e.TenantID, PasswordHash: e.PasswordHash, CreatedAt: e.Timestamp,
	})
	if err != nil {
		return err
	}

	// The notification data must not carry the hash.
	redacted := e
	redacted.PasswordHash = ""
	return p.notify(ctx, channelUserUpdates(e.UserID), e.EventType(), redacted,
		EnvelopeMeta{TenantID: e.TenantID, AggregateID: e.UserID, Version: version})
}

func (p *Projector) applyPasswordChanged(ctx context.Context, e event.PasswordChanged, version uint64) error {
	if err := p.reads.SetPasswordHash(ctx, e.UserID, e.NewPasswordHash); err != nil {
		return err
	}
	redacted := e
	redacted.NewPasswordHash = ""
	return p.notify(ctx, channelUserUpdates(e.UserID), e.EventType(), redacted,
		EnvelopeMeta{AggregateID: e.UserID, Version: version})
}

func (p *Projector) applyApiKeyGenerated(ctx context.Context, e event.ApiKeyGenerated, version uint64) error {
	err := p.reads.UpsertApiKey(ctx, readmodel.ApiKey{
		KeyID: e.KeyID, UserID: e.UserID, Name: e.KeyName,
		KeyHash: e.ApiKeyHash, CreatedAt: e.Timestamp,
	})
	if err != nil {
		return err
	}
	redacted := e
	redacted.ApiKeyHash = ""
	return p.notify(ctx, channelUserApiKeys(e.UserID), e.EventType(), redacted,
		EnvelopeMeta{AggregateID: e.UserID, Version: version})
}

func (p *Projector) applyApiKeyRevoked(ctx context.Context, e event.ApiKeyRevoked, version uint64) error {
	if err := p.reads.DeleteApiKey(ctx, e.KeyID); err != nil {
		return err
	}
	return p.notify(ctx, channelUserApiKeys(e.UserID), e.EventType(), e,
		EnvelopeMeta{AggregateID: e.UserID, Version: version})
}

func (p *Projector) applyUserLoggedIn(ctx context.Context, e event.UserLoggedIn, version uint64) error {
	if err := p.reads.SetLastLogin(ctx, e.UserID, e.Timestamp); err != nil {
		return err
	}
	return p.notify(ctx, channelUserUpdates(e.UserID), e.EventType(), e,
		EnvelopeMeta{AggregateID: e.UserID, Version: version})
}

func (p *Projector) applyPirepSubmitted(ctx context.Context, e event.PirepSubmitted, version uint64) error {
	err := p.reads.UpsertPirep(ctx, readmodel.Pirep{
		ID: e.PirepID, TenantID: e.TenantID, UserID: e.UserID,
		AircraftID: e.AircraftID, DepartureICAO: e.DepartureICAO, ArrivalICAO: e.ArrivalICAO,
		FlightNumber: e.FlightNumber, FlightTimeHours: e.FlightTimeHours,
		Remarks: e.Remarks, SubmittedAt: e.Timestamp,
	})
	if err != nil {
		return err
	}
	return p.notify(ctx, channelTenantUpdates(e.TenantID), e.EventType(), e,
		EnvelopeMeta{TenantID: &e.TenantID, AggregateID: e.PirepID, Version: version})
}

// notify publishes the envelope best-effort: realtime delivery is not
// the system of record, so a failure is logged but the event is still
// acknowledged.
func (p *Projector) notify(ctx context.Context, channel string, t event.Type, data any, meta EnvelopeMeta) error {
	env := Envelope{
		EventType: string(t),
		TS:        time.Now().UTC().Format(time.RFC3339),
		Data:      data,
		Meta:      meta,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := p.notifier.Notify(ctx, channel, payload); err != nil {
		slog.Error("notification publish failed", "channel", channel, "error", err)
	}
	return nil
}

func channelUserUpdates(userID string) string { return "user:" + userID + ":updates" }

func channelUserApiKeys(userID string) string { return "user:" + userID + ":apikeys" }

func channelTenantUpdates(tenantID string) string { return "tenant:" + tenantID + ":updates" }
