package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "decision-gate"

// Metrics holds the gate's metric instruments.
type Metrics struct {
	Rounds        metric.Int64Counter
	Decisions     metric.Int64Counter
	ChannelErrors metric.Int64Counter
	AuditFailures metric.Int64Counter
	RoundDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Rounds, err = meter.Int64Counter("gate.rounds",
		metric.WithDescription("Number of gating rounds started"))
	if err != nil {
		return nil, err
	}

	m.Decisions, err = meter.Int64Counter("gate.decisions",
		metric.WithDescription("Number of decisions by flavor and outcome"))
	if err != nil {
		return nil, err
	}

	m.ChannelErrors, err = meter.Int64Counter("gate.channel_errors",
		metric.WithDescription("Number of rounds that failed closed at the channel"))
	if err != nil {
		return nil, err
	}

	m.AuditFailures, err = meter.Int64Counter("gate.audit_failures",
		metric.WithDescription("Number of rounds whose audit record was not confirmed"))
	if err != nil {
		return nil, err
	}

	m.RoundDuration, err = meter.Float64Histogram("gate.round.duration_seconds",
		metric.WithDescription("Round duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRound counts a finished round. A nil receiver is a no-op.
func (m *Metrics) RecordRound(ctx context.Context, flavor, outcome string, started time.Time, channelErr, auditErr bool) {
	if m == nil {
		return
	}
	flavorAttr := metric.WithAttributes(attribute.String("flavor", flavor))
	m.Rounds.Add(ctx, 1, flavorAttr)
	m.Decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flavor", flavor),
		attribute.String("outcome", outcome),
	))
	if channelErr {
		m.ChannelErrors.Add(ctx, 1, flavorAttr)
	}
	if auditErr {
		m.AuditFailures.Add(ctx, 1, flavorAttr)
	}
	m.RoundDuration.Record(ctx, time.Since(started).Seconds(), flavorAttr)
}
