package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/audit"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/gate"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region capabilities
// AuditSink durably accepts one record per round. audit.SQLSink,
// audit.JetStreamSink and audit.MultiSink all satisfy it.
type AuditSink interface {
	Append(ctx context.Context, rec audit.Record) error
}

// Forwarder releases an approved epoch batch downstream, unmodified.
type Forwarder interface {
	Forward(ctx context.Context, epochs []verdict.EpochRow) error
}

// Applier applies an approved evolution frame to the device.
type Applier interface {
	Apply(ctx context.Context, frame verdict.EvolutionFrame) error
}

// FeedbackHook renders a frame outcome to the operator. state is one of
// "safe", "defer", "deny".
type FeedbackHook interface {
	Feedback(ctx context.Context, state string, d gate.FrameDecision)
}

// #endregion capabilities

// #region stages
// Stage names recorded in audit.Detail.Stage for fail-closed rounds.
const (
	StageChannel  = "channel"
	StageEvaluate = "evaluate"
)

// #endregion stages

// #region side-effect-error
// SideEffectError reports a forward or apply failure after the round's audit
// record was confirmed.
type SideEffectError struct {
	RoundID string
	Op      string // "forward" | "apply"
	Err     error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("%s round %s: %v", e.Op, e.RoundID, e.Err)
}

func (e *SideEffectError) Unwrap() error { return e.Err }

// #endregion side-effect-error

// #region options
type options struct {
	logger *slog.Logger
}

// Option configures a router.
type Option func(*options)

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// #endregion options

// #region batch-router
// BatchRouter writes the audit record for a batch decision and forwards the
// batch only when the decision is Proceed.
type BatchRouter struct {
	sink    AuditSink
	forward Forwarder
	logger  *slog.Logger
}

// NewBatchRouter creates a batch router. A nil forwarder makes Proceed
// record-only.
func NewBatchRouter(sink AuditSink, forward Forwarder, opts ...Option) *BatchRouter {
	o := buildOptions(opts)
	return &BatchRouter{sink: sink, forward: forward, logger: o.logger}
}

// Route appends the record and, once it is confirmed, forwards a Proceed
// batch. If the record cannot be confirmed nothing is forwarded and a
// *verdict.AuditWriteError is returned.
func (r *BatchRouter) Route(ctx context.Context, d gate.BatchDecision, batch verdict.CandidateBatch) error {
	rec := batchRecord(d, batch)
	if err := r.append(ctx, rec); err != nil {
		return err
	}
	if !d.Permissive() {
		r.logger.Info("[ROUTER] batch suppressed",
			"round_id", d.RoundID, "failing_checks", d.FailingChecks)
		return nil
	}
	if r.forward == nil {
		r.logger.Info("[ROUTER] batch approved, no forwarder configured", "round_id", d.RoundID)
		return nil
	}
	if err := r.forward.Forward(ctx, batch.Epochs); err != nil {
		r.logger.Error("[ROUTER] forward failed", "round_id", d.RoundID, "err", err)
		return &SideEffectError{RoundID: d.RoundID, Op: "forward", Err: err}
	}
	r.logger.Info("[ROUTER] batch forwarded", "round_id", d.RoundID, "epochs", len(batch.Epochs))
	return nil
}

// RouteFailure records a round that could not be evaluated. The decision
// must be a fail-closed Suppress; nothing is forwarded.
func (r *BatchRouter) RouteFailure(ctx context.Context, d gate.BatchDecision, batch verdict.CandidateBatch, stage string, cause error) error {
	if d.Permissive() {
		return fmt.Errorf("route failure: round %s: fail-closed decision must not proceed", d.RoundID)
	}
	rec := batchRecord(d, batch)
	rec.Detail.Stage = stage
	if cause != nil {
		rec.Detail.Error = cause.Error()
	}
	r.logger.Warn("[ROUTER] batch fail-closed", "round_id", d.RoundID, "stage", stage, "err", cause)
	return r.append(ctx, rec)
}

func (r *BatchRouter) append(ctx context.Context, rec audit.Record) error {
	return appendRecord(ctx, r.sink, r.logger, rec)
}

func batchRecord(d gate.BatchDecision, batch verdict.CandidateBatch) audit.Record {
	return audit.Record{
		Kind:        audit.KindBatch,
		RoundID:     d.RoundID,
		Outcome:     d.Outcome(),
		Detail:      audit.Detail{FailingChecks: d.FailingChecks},
		EpochCount:  len(batch.Epochs),
		LedgerCount: len(batch.Ledger),
		EvaluatedAt: d.EvaluatedAt,
	}
}

// #endregion batch-router

// #region frame-router
// FrameRouter writes the audit record for a frame decision, applies Safe
// frames, and reports every authority verdict to the feedback hook once.
type FrameRouter struct {
	sink     AuditSink
	apply    Applier
	feedback FeedbackHook
	logger   *slog.Logger
}

// NewFrameRouter creates a frame router. A nil applier makes Safe
// record-only; a nil hook logs feedback through the router's logger.
func NewFrameRouter(sink AuditSink, apply Applier, feedback FeedbackHook, opts ...Option) *FrameRouter {
	o := buildOptions(opts)
	if feedback == nil {
		feedback = LogFeedback{Logger: o.logger}
	}
	return &FrameRouter{sink: sink, apply: apply, feedback: feedback, logger: o.logger}
}

// Route appends the record, then applies a Safe frame and delivers feedback.
// Feedback is delivered after apply whether or not apply succeeded. If the
// record cannot be confirmed there is no apply and no feedback.
func (r *FrameRouter) Route(ctx context.Context, d gate.FrameDecision, frame verdict.EvolutionFrame, evaluatedAt time.Time) error {
	rec := frameRecord(d, frame, evaluatedAt)
	if err := appendRecord(ctx, r.sink, r.logger, rec); err != nil {
		return err
	}

	var applyErr error
	if d.Verdict == gate.VerdictSafe && r.apply != nil {
		if err := r.apply.Apply(ctx, frame); err != nil {
			r.logger.Error("[ROUTER] apply failed", "round_id", d.RoundID, "frame_id", frame.FrameID, "err", err)
			applyErr = &SideEffectError{RoundID: d.RoundID, Op: "apply", Err: err}
		} else {
			r.logger.Info("[ROUTER] frame applied", "round_id", d.RoundID, "frame_id", frame.FrameID)
		}
	}
	r.feedback.Feedback(ctx, d.Verdict.FeedbackState(), d)
	return applyErr
}

// RouteFailure records a frame round that ended without a valid verdict.
// The decision must be Deny. There is no apply and no feedback.
func (r *FrameRouter) RouteFailure(ctx context.Context, d gate.FrameDecision, frame verdict.EvolutionFrame, evaluatedAt time.Time, stage string, cause error) error {
	if d.Verdict != gate.VerdictDeny {
		return fmt.Errorf("route failure: round %s: fail-closed decision must be deny", d.RoundID)
	}
	rec := frameRecord(d, frame, evaluatedAt)
	rec.Detail.Stage = stage
	if cause != nil {
		rec.Detail.Error = cause.Error()
	}
	r.logger.Warn("[ROUTER] frame fail-closed", "round_id", d.RoundID, "frame_id", frame.FrameID, "stage", stage, "err", cause)
	return appendRecord(ctx, r.sink, r.logger, rec)
}

func frameRecord(d gate.FrameDecision, frame verdict.EvolutionFrame, evaluatedAt time.Time) audit.Record {
	return audit.Record{
		Kind:        audit.KindFrame,
		RoundID:     d.RoundID,
		Outcome:     d.Outcome(),
		Detail:      audit.Detail{FrameID: frame.FrameID, RawDecision: d.Raw.Payload},
		EvaluatedAt: evaluatedAt,
	}
}

// #endregion frame-router

// #region audit
func appendRecord(ctx context.Context, sink AuditSink, logger *slog.Logger, rec audit.Record) error {
	if sink == nil {
		return &verdict.AuditWriteError{RoundID: rec.RoundID, Err: errors.New("no audit sink configured")}
	}
	// The record outlives the round's context: a cancelled round is still audited.
	if err := sink.Append(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("[AUDIT] record not confirmed", "round_id", rec.RoundID, "kind", rec.Kind, "err", err)
		return &verdict.AuditWriteError{RoundID: rec.RoundID, Err: err}
	}
	logger.Debug("[AUDIT] record confirmed", "round_id", rec.RoundID, "kind", rec.Kind, "outcome", rec.Outcome)
	return nil
}

// #endregion audit
