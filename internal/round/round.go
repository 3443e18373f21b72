package round

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/gate"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/router"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/telemetry"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region channels
// BatchChannel asks the decision authority to check a batch.
type BatchChannel interface {
	Evaluate(ctx context.Context, req verdict.BatchRequest) ([]verdict.Check, error)
}

// FrameChannel proposes an evolution frame to the decision authority.
type FrameChannel interface {
	Submit(ctx context.Context, frame verdict.EvolutionFrame) (verdict.RawDecision, error)
}

// #endregion channels

// #region outcomes
// BatchOutcome is the result of one batch round. Decision is always set;
// Stage names the stage that failed when the round resolved fail-closed.
type BatchOutcome struct {
	Decision gate.BatchDecision
	Verdict  verdict.VerdictResult
	Stage    string
	Audited  bool
}

// FrameOutcome is the result of one frame round.
type FrameOutcome struct {
	Decision    gate.FrameDecision
	Frame       verdict.EvolutionFrame
	EvaluatedAt time.Time
	Stage       string
	Audited     bool
}

// #endregion outcomes

// #region options
type options struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures a round.
type Option func(*options)

// WithLogger sets the round's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records round counters and durations on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// #endregion options

// #region batch-round
// BatchRound gates one candidate batch per Run: channel, evaluator, router.
// Rounds share no mutable state, so a BatchRound may run concurrently.
type BatchRound struct {
	channel BatchChannel
	gate    *gate.Gate
	router  *router.BatchRouter
	env     Env
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewBatchRound wires a batch round. A nil gate uses the strict default.
func NewBatchRound(ch BatchChannel, g *gate.Gate, r *router.BatchRouter, env Env, opts ...Option) *BatchRound {
	if g == nil {
		g = gate.NewGate(gate.DefaultGateConfig())
	}
	o := buildOptions(opts)
	return &BatchRound{
		channel: ch,
		gate:    g,
		router:  r,
		env:     env.withDefaults(),
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Run executes one batch round. The outcome always carries a decision. A
// channel or evaluator failure yields an audited Suppress and an error
// prefixed with the failing stage; an unconfirmed audit record yields a
// *verdict.AuditWriteError and nothing is forwarded.
func (b *BatchRound) Run(ctx context.Context, batch verdict.CandidateBatch, policy verdict.PolicyEnvelope) (out BatchOutcome, err error) {
	started := time.Now()
	roundID := b.env.IDs.NewID()
	ctx, span := telemetry.StartBatchRoundSpan(ctx, roundID, len(batch.Epochs), len(batch.Ledger))
	defer func() {
		telemetry.EndRoundSpan(span, out.Decision.Outcome(), err)
		b.metrics.RecordRound(ctx, "batch", out.Decision.Outcome(), started,
			out.Stage == router.StageChannel, !out.Audited)
	}()

	b.logger.Info("[ROUND] batch submitted", "round_id", roundID,
		"epochs", len(batch.Epochs), "ledger", len(batch.Ledger))

	checks, chErr := b.channel.Evaluate(ctx, verdict.NewBatchRequest(batch, policy))
	evaluatedAt := b.env.Clock.Now()
	out.Verdict = verdict.VerdictResult{
		RoundID:      roundID,
		Checks:       checks,
		SubjectCount: len(batch.Epochs),
		LedgerCount:  len(batch.Ledger),
		EvaluatedAt:  evaluatedAt,
	}
	if chErr != nil {
		out.Decision = gate.FailClosedBatch(roundID, evaluatedAt)
		return b.failClosed(ctx, out, batch, router.StageChannel, chErr)
	}

	decision, evalErr := b.gate.Normalize(out.Verdict)
	out.Decision = decision
	if evalErr != nil {
		return b.failClosed(ctx, out, batch, router.StageEvaluate, evalErr)
	}

	b.logger.Info("[ROUND] batch evaluated", "round_id", roundID,
		"outcome", decision.Outcome(), "failing_checks", decision.FailingChecks)

	if err := b.router.Route(ctx, decision, batch); err != nil {
		out.Audited = !errors.Is(err, verdict.ErrAuditWrite)
		return out, fmt.Errorf("route: %w", err)
	}
	out.Audited = true
	return out, nil
}

func (b *BatchRound) failClosed(ctx context.Context, out BatchOutcome, batch verdict.CandidateBatch, stage string, cause error) (BatchOutcome, error) {
	out.Stage = stage
	b.logger.Warn("[ROUND] batch failed closed", "round_id", out.Decision.RoundID, "stage", stage, "err", cause)
	auditErr := b.router.RouteFailure(ctx, out.Decision, batch, stage, cause)
	out.Audited = auditErr == nil
	return out, errors.Join(fmt.Errorf("%s: %w", stage, cause), auditErr)
}

// #endregion batch-round

// #region frame-round
// FrameRound gates one candidate update per Run for a single host.
type FrameRound struct {
	channel FrameChannel
	gate    *gate.Gate
	router  *router.FrameRouter
	env     Env
	host    string
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewFrameRound wires a frame round for host.
func NewFrameRound(ch FrameChannel, g *gate.Gate, r *router.FrameRouter, env Env, host string, opts ...Option) *FrameRound {
	if g == nil {
		g = gate.NewGate(gate.DefaultGateConfig())
	}
	o := buildOptions(opts)
	return &FrameRound{
		channel: ch,
		gate:    g,
		router:  r,
		env:     env.withDefaults(),
		host:    host,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// Run builds the evolution frame for u, submits it, and routes the verdict.
// A channel failure or unknown verdict yields an audited Deny with no apply
// and no feedback.
func (f *FrameRound) Run(ctx context.Context, u verdict.CandidateUpdate) (out FrameOutcome, err error) {
	started := time.Now()
	roundID := f.env.IDs.NewID()
	out.Frame = verdict.BuildFrame(f.host, u)
	ctx, span := telemetry.StartFrameRoundSpan(ctx, roundID, u.FrameID, f.host)
	defer func() {
		telemetry.EndRoundSpan(span, out.Decision.Outcome(), err)
		f.metrics.RecordRound(ctx, "frame", out.Decision.Outcome(), started,
			out.Stage == router.StageChannel, !out.Audited)
	}()

	f.logger.Info("[ROUND] frame submitted", "round_id", roundID, "frame_id", u.FrameID, "host", f.host)

	raw, chErr := f.channel.Submit(ctx, out.Frame)
	out.EvaluatedAt = f.env.Clock.Now()
	if chErr != nil {
		out.Decision = gate.FailClosedFrame(roundID)
		return f.failClosed(ctx, out, router.StageChannel, chErr)
	}

	decision, evalErr := f.gate.ClassifyFrame(roundID, raw)
	out.Decision = decision
	if evalErr != nil {
		return f.failClosed(ctx, out, router.StageEvaluate, evalErr)
	}

	f.logger.Info("[ROUND] frame evaluated", "round_id", roundID,
		"frame_id", u.FrameID, "verdict", string(decision.Verdict))

	if err := f.router.Route(ctx, decision, out.Frame, out.EvaluatedAt); err != nil {
		out.Audited = !errors.Is(err, verdict.ErrAuditWrite)
		return out, fmt.Errorf("route: %w", err)
	}
	out.Audited = true
	return out, nil
}

func (f *FrameRound) failClosed(ctx context.Context, out FrameOutcome, stage string, cause error) (FrameOutcome, error) {
	out.Stage = stage
	f.logger.Warn("[ROUND] frame failed closed", "round_id", out.Decision.RoundID, "frame_id", out.Frame.FrameID, "stage", stage, "err", cause)
	auditErr := f.router.RouteFailure(ctx, out.Decision, out.Frame, out.EvaluatedAt, stage, cause)
	out.Audited = auditErr == nil
	return out, errors.Join(fmt.Errorf("%s: %w", stage, cause), auditErr)
}

// #endregion frame-round
