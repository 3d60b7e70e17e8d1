package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "albatross"

// Metrics holds all albatross metric instruments.
type Metrics struct {
	CommandsExecuted   metric.Int64Counter
	CommandConflicts   metric.Int64Counter
	EventsAppended     metric.Int64Counter
	ProjectionsApplied metric.Int64Counter
	ProjectionFailures metric.Int64Counter
	WSConnections      metric.Int64UpDownCounter
	WSMessagesSent     metric.Int64Counter
	CommandDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.CommandsExecuted, err = meter.Int64Counter("albatross.commands.executed",
		metric.WithDescription("Number of commands executed"))
	if err != nil {
		return nil, err
	}

	m.CommandConflicts, err = meter.Int64Counter("albatross.commands.conflicts",
		metric.WithDescription("Number of commands rejected by optimistic concurrency"))
	if err != nil {
		return nil, err
	}

	m.EventsAppended, err = meter.Int64Counter("albatross.events.appended",
		metric.WithDescription("Number of events appended to the store"))
	if err != nil {
		return nil, err
	}

	m.ProjectionsApplied, err = meter.Int64Counter("albatross.projections.applied",
		metric.WithDescription("Number of events applied to read models"))
	if err != nil {
		return nil, err
	}

	m.ProjectionFailures, err = meter.Int64Counter("albatross.projections.failures",
		metric.WithDescription("Number of events the projection worker discarded"))
	if err != nil {
		return nil, err
	}

	m.WSConnections, err = meter.Int64UpDownCounter("albatross.ws.connections",
		metric.WithDescription("Current realtime connections"))
	if err != nil {
		return nil, err
	}

	m.WSMessagesSent, err = meter.Int64Counter("albatross.ws.messages_sent",
		metric.WithDescription("Realtime messages forwarded to clients"))
	if err != nil {
		return nil, err
	}

	m.CommandDuration, err = meter.Float64Histogram("albatross.command.duration_seconds",
		metric.WithDescription("Command execution duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
