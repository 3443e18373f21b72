package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/audit"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/gate"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region fakes
// calls records the order of every side effect across fakes.
type calls struct {
	seq []string
}

type fakeSink struct {
	log     *calls
	records []audit.Record
	err     error
}

func (s *fakeSink) Append(_ context.Context, rec audit.Record) error {
	s.log.seq = append(s.log.seq, "audit")
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type fakeForwarder struct {
	log    *calls
	epochs []verdict.EpochRow
	err    error
}

func (f *fakeForwarder) Forward(_ context.Context, epochs []verdict.EpochRow) error {
	f.log.seq = append(f.log.seq, "forward")
	f.epochs = epochs
	return f.err
}

type fakeApplier struct {
	log *calls
	err error
}

func (a *fakeApplier) Apply(_ context.Context, _ verdict.EvolutionFrame) error {
	a.log.seq = append(a.log.seq, "apply")
	return a.err
}

type fakeFeedback struct {
	log    *calls
	states []string
}

func (f *fakeFeedback) Feedback(_ context.Context, state string, _ gate.FrameDecision) {
	f.log.seq = append(f.log.seq, "feedback:"+state)
	f.states = append(f.states, state)
}

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testBatch() verdict.CandidateBatch {
	return verdict.CandidateBatch{
		Epochs: []verdict.EpochRow{{EpochID: 1, SubjectID: "s1"}, {EpochID: 2, SubjectID: "s1"}},
		Ledger: []verdict.LedgerRow{{ID: 9, SubjectID: "s1", Event: "consent_granted"}},
	}
}

func seqEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// #endregion fakes

// #region batch-tests
func TestBatchRouteProceedAuditsThenForwards(t *testing.T) {
	log := &calls{}
	sink := &fakeSink{log: log}
	fwd := &fakeForwarder{log: log}
	r := NewBatchRouter(sink, fwd, quiet())

	d := gate.BatchDecision{RoundID: "r-1", Action: gate.ActionProceed, FailingChecks: []string{}, EvaluatedAt: testTime}
	batch := testBatch()
	if err := r.Route(context.Background(), d, batch); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if !seqEqual(log.seq, []string{"audit", "forward"}) {
		t.Fatalf("expected audit before forward, got %v", log.seq)
	}
	rec := sink.records[0]
	if rec.Kind != audit.KindBatch || rec.Outcome != "proceed" || rec.RoundID != "r-1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.EpochCount != 2 || rec.LedgerCount != 1 || !rec.EvaluatedAt.Equal(testTime) {
		t.Fatalf("counts/time not recorded: %+v", rec)
	}
	if len(fwd.epochs) != 2 || fwd.epochs[0] != batch.Epochs[0] {
		t.Fatalf("forwarded epochs differ from input: %+v", fwd.epochs)
	}
}

func TestBatchRouteSuppressNeverForwards(t *testing.T) {
	log := &calls{}
	sink := &fakeSink{log: log}
	fwd := &fakeForwarder{log: log}
	r := NewBatchRouter(sink, fwd, quiet())

	d := gate.BatchDecision{RoundID: "r-2", Action: gate.ActionSuppress, FailingChecks: []string{"privacy"}, EvaluatedAt: testTime}
	if err := r.Route(context.Background(), d, testBatch()); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if !seqEqual(log.seq, []string{"audit"}) {
		t.Fatalf("suppress must only audit, got %v", log.seq)
	}
	if got := sink.records[0].Detail.FailingChecks; len(got) != 1 || got[0] != "privacy" {
		t.Fatalf("failing checks not recorded: %v", got)
	}
}

func TestBatchRouteAuditFailureBlocksForward(t *testing.T) {
	log := &calls{}
	sink := &fakeSink{log: log, err: errors.New("disk full")}
	fwd := &fakeForwarder{log: log}
	r := NewBatchRouter(sink, fwd, quiet())

	d := gate.BatchDecision{RoundID: "r-3", Action: gate.ActionProceed, EvaluatedAt: testTime}
	err := r.Route(context.Background(), d, testBatch())
	if !errors.Is(err, verdict.ErrAuditWrite) {
		t.Fatalf("expected ErrAuditWrite, got %v", err)
	}
	var awe *verdict.AuditWriteError
	if !errors.As(err, &awe) || awe.RoundID != "r-3" {
		t.Fatalf("expected AuditWriteError for r-3, got %v", err)
	}
	if !seqEqual(log.seq, []string{"audit"}) {
		t.Fatalf("nothing may follow a failed audit, got %v", log.seq)
	}
}

func TestBatchRouteForwardFailure(t *testing.T) {
	log := &calls{}
	sink := &fakeSink{log: log}
	boom := errors.New("nats down")
	r := NewBatchRouter(sink, &fakeForwarder{log: log, err: boom}, quiet())

	d := gate.BatchDecision{RoundID: "r-4", Action: gate.ActionProceed, EvaluatedAt: testTime}
	err := r.Route(context.Background(), d, testBatch())
	var se *SideEffectError
	if !errors.As(err, &se) || se.Op != "forward" || !errors.Is(err, boom) {
		t.Fatalf("expected forward SideEffectError, got %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected exactly one audit record, got %d", len(sink.records))
	}
}

func TestBatchRouteNilForwarder(t *testing.T) {
	sink := &fakeSink{log: &calls{}}
	r := NewBatchRouter(sink, nil, quiet())

	d := gate.BatchDecision{RoundID: "r-5", Action: gate.ActionProceed, EvaluatedAt: testTime}
	if err := r.Route(context.Background(), d, testBatch()); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatal("expected record")
	}
}

func TestBatchRouteFailureRecordsStage(t *testing.T) {
	log := &calls{}
	sink := &fakeSink{log: log}
	r := NewBatchRouter(sink, &fakeForwarder{log: log}, quiet())

	cause := &verdict.ChannelError{Op: "check_invariants", Status: 503}
	d := gate.FailClosedBatch("r-6", testTime)
	if err := r.RouteFailure(context.Background(), d, testBatch(), StageChannel, cause); err != nil {
		t.Fatalf("RouteFailure: %v", err)
	}
	if !seqEqual(log.seq, []string{"audit"}) {
		t.Fatalf("fail-closed round must not forward, got %v", log.seq)
	}
	rec := sink.records[0]
	if rec.Outcome != "suppress" || rec.Detail.Stage != StageChannel || rec.Detail.Error == "" {
		t.Fatalf("unexpected fail-closed record: %+v", rec)
	}
}

func TestBatchRouteFailureRejectsProceed(t *testing.T) {
	sink := &fakeSink{log: &calls{}}
	r := NewBatchRouter(sink, nil, quiet())

	d := gate.BatchDecision{RoundID: "r-7", Action: gate.ActionProceed}
	if err := r.RouteFailure(context.Background(), d, testBatch(), StageEvaluate, nil); err == nil {
		t.Fatal("expected error for permissive fail-closed decision")
	}
	if len(sink.records) != 0 {
		t.Fatal("no record should be written")
	}
}

func TestRouteWithoutSink(t *testing.T) {
	r := NewBatchRouter(nil, nil, quiet())
	err := r.Route(context.Background(), gate.FailClosedBatch("r-8", testTime), testBatch())
	if !errors.Is(err, verdict.ErrAuditWrite) {
		t.Fatalf("expected ErrAuditWrite without a sink, got %v", err)
	}
}

// #endregion batch-tests

// #region frame-tests
func frameFixture() verdict.EvolutionFrame {
	return verdict.BuildFrame("host-a", verdict.CandidateUpdate{FrameID: "f-1", Plane: "bci", Scope: "decoder"})
}

func TestFrameRouteVerdicts(t *testing.T) {
	tests := []struct {
		verdict gate.FrameVerdict
		wantSeq []string
		outcome string
	}{
		{gate.VerdictSafe, []string{"audit", "apply", "feedback:safe"}, "safe"},
		{gate.VerdictDefer, []string{"audit", "feedback:defer"}, "defer"},
		{gate.VerdictDeny, []string{"audit", "feedback:deny"}, "deny"},
	}
	for _, tt := range tests {
		t.Run(string(tt.verdict), func(t *testing.T) {
			log := &calls{}
			sink := &fakeSink{log: log}
			fb := &fakeFeedback{log: log}
			r := NewFrameRouter(sink, &fakeApplier{log: log}, fb, quiet())

			d := gate.FrameDecision{
				RoundID: "r-f",
				Verdict: tt.verdict,
				Raw:     verdict.RawDecision{Verdict: string(tt.verdict), Payload: map[string]any{"verdict": string(tt.verdict)}},
			}
			if err := r.Route(context.Background(), d, frameFixture(), testTime); err != nil {
				t.Fatalf("Route: %v", err)
			}
			if !seqEqual(log.seq, tt.wantSeq) {
				t.Fatalf("got %v, want %v", log.seq, tt.wantSeq)
			}
			rec := sink.records[0]
			if rec.Kind != audit.KindFrame || rec.Outcome != tt.outcome || rec.Detail.FrameID != "f-1" {
				t.Fatalf("unexpected record: %+v", rec)
			}
			if rec.Detail.RawDecision["verdict"] != string(tt.verdict) {
				t.Fatalf("raw decision not recorded: %+v", rec.Detail)
			}
		})
	}
}

func TestFrameRouteAuditFailure(t *testing.T) {
	log := &calls{}
	sink := &fakeSink{log: log, err: errors.New("stream unavailable")}
	fb := &fakeFeedback{log: log}
	r := NewFrameRouter(sink, &fakeApplier{log: log}, fb, quiet())

	d := gate.FrameDecision{RoundID: "r-f2", Verdict: gate.VerdictSafe}
	err := r.Route(context.Background(), d, frameFixture(), testTime)
	if !errors.Is(err, verdict.ErrAuditWrite) {
		t.Fatalf("expected ErrAuditWrite, got %v", err)
	}
	if !seqEqual(log.seq, []string{"audit"}) {
		t.Fatalf("no apply or feedback after failed audit, got %v", log.seq)
	}
}

func TestFrameRouteApplyFailureStillFeedsBack(t *testing.T) {
	log := &calls{}
	sink := &fakeSink{log: log}
	fb := &fakeFeedback{log: log}
	r := NewFrameRouter(sink, &fakeApplier{log: log, err: errors.New("flash write")}, fb, quiet())

	d := gate.FrameDecision{RoundID: "r-f3", Verdict: gate.VerdictSafe}
	err := r.Route(context.Background(), d, frameFixture(), testTime)
	var se *SideEffectError
	if !errors.As(err, &se) || se.Op != "apply" {
		t.Fatalf("expected apply SideEffectError, got %v", err)
	}
	if len(fb.states) != 1 || fb.states[0] != "safe" {
		t.Fatalf("expected one safe feedback, got %v", fb.states)
	}
}

func TestFrameRouteFailureNoFeedback(t *testing.T) {
	log := &calls{}
	sink := &fakeSink{log: log}
	fb := &fakeFeedback{log: log}
	r := NewFrameRouter(sink, &fakeApplier{log: log}, fb, quiet())

	d := gate.FailClosedFrame("r-f4")
	cause := &verdict.UnknownVerdictError{Verdict: "Maybe"}
	if err := r.RouteFailure(context.Background(), d, frameFixture(), testTime, StageEvaluate, cause); err != nil {
		t.Fatalf("RouteFailure: %v", err)
	}
	if !seqEqual(log.seq, []string{"audit"}) {
		t.Fatalf("fail-closed frame must only audit, got %v", log.seq)
	}
	if sink.records[0].Outcome != "deny" || sink.records[0].Detail.Stage != StageEvaluate {
		t.Fatalf("unexpected record: %+v", sink.records[0])
	}
}

func TestFrameRouteFailureRejectsSafe(t *testing.T) {
	r := NewFrameRouter(&fakeSink{log: &calls{}}, nil, nil, quiet())
	d := gate.FrameDecision{RoundID: "r-f5", Verdict: gate.VerdictSafe}
	if err := r.RouteFailure(context.Background(), d, frameFixture(), testTime, StageChannel, nil); err == nil {
		t.Fatal("expected error for non-deny fail-closed decision")
	}
}

func TestFrameRouteDefaultFeedback(t *testing.T) {
	sink := &fakeSink{log: &calls{}}
	r := NewFrameRouter(sink, nil, nil, quiet())
	d := gate.FrameDecision{RoundID: "r-f6", Verdict: gate.VerdictDefer}
	if err := r.Route(context.Background(), d, frameFixture(), testTime); err != nil {
		t.Fatalf("Route: %v", err)
	}
}

// #endregion frame-tests
