package gate

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

func msg(s string) *string { return &s }

func makeVerdict(checks ...verdict.Check) verdict.VerdictResult {
	return verdict.VerdictResult{
		RoundID:      "round-1",
		Checks:       checks,
		SubjectCount: 3,
		LedgerCount:  2,
		EvaluatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// #region normalize-tests
func TestNormalizeProceedOnAllPassing(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	v := makeVerdict(
		verdict.Check{Name: "privacy", OK: true},
		verdict.Check{Name: "liberty", OK: true},
	)

	d, err := g.Normalize(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionProceed {
		t.Fatalf("expected proceed, got %s", d.Action)
	}
	if len(d.FailingChecks) != 0 {
		t.Fatalf("expected no failing checks, got %v", d.FailingChecks)
	}
	if d.RoundID != "round-1" || !d.EvaluatedAt.Equal(v.EvaluatedAt) {
		t.Fatalf("round id / timestamp not carried through: %+v", d)
	}
}

func TestNormalizeSuppressOnEmptyChecks(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	d, err := g.Normalize(makeVerdict())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionSuppress {
		t.Fatalf("expected suppress for empty checks, got %s", d.Action)
	}
	if d.FailingChecks == nil {
		t.Fatal("failing checks should be an empty slice, not nil")
	}
}

func TestNormalizeSuppressOnFailingCheck(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	v := makeVerdict(
		verdict.Check{Name: "privacy", OK: true},
		verdict.Check{Name: "liberty", OK: false, Message: msg("scope exceeded")},
	)

	d, err := g.Normalize(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionSuppress {
		t.Fatalf("expected suppress, got %s", d.Action)
	}
	if !reflect.DeepEqual(d.FailingChecks, []string{"liberty"}) {
		t.Fatalf("expected [liberty], got %v", d.FailingChecks)
	}
}

func TestNormalizePreservesFailingOrder(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	v := makeVerdict(
		verdict.Check{Name: "soul", OK: false, Message: msg("addressed")},
		verdict.Check{Name: "privacy", OK: true},
		verdict.Check{Name: "commercial", OK: false, Message: msg("sold")},
		verdict.Check{Name: "integrity", OK: false, Message: msg("altered")},
	)

	d, _ := g.Normalize(v)

	want := []string{"soul", "commercial", "integrity"}
	if !reflect.DeepEqual(d.FailingChecks, want) {
		t.Fatalf("expected %v, got %v", want, d.FailingChecks)
	}
}

func TestNormalizeFailingCheckWithoutMessageIsMalformed(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	v := makeVerdict(
		verdict.Check{Name: "privacy", OK: true},
		verdict.Check{Name: "liberty", OK: false},
		verdict.Check{Name: "integrity", OK: false, Message: msg("   ")},
	)

	d, err := g.Normalize(v)
	if !errors.Is(err, verdict.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	var me *verdict.MalformedError
	if !errors.As(err, &me) {
		t.Fatalf("expected *MalformedError, got %T", err)
	}
	if !reflect.DeepEqual(me.Checks, []string{"liberty", "integrity"}) {
		t.Fatalf("expected offenders [liberty integrity], got %v", me.Checks)
	}
	if d.Action != ActionSuppress {
		t.Fatalf("malformed verdict must suppress, got %s", d.Action)
	}
}

func TestNormalizeMissingNameIsMalformedEvenWhenPassing(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	v := makeVerdict(verdict.Check{Name: "", OK: true})

	d, err := g.Normalize(v)
	if !errors.Is(err, verdict.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if d.Action != ActionSuppress {
		t.Fatalf("expected suppress, got %s", d.Action)
	}
}

func TestNormalizeLenientConfigAcceptsSilentFailure(t *testing.T) {
	g := NewGate(GateConfig{RequireFailureMessage: false})
	v := makeVerdict(verdict.Check{Name: "liberty", OK: false})

	d, err := g.Normalize(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Action != ActionSuppress {
		t.Fatalf("expected suppress, got %s", d.Action)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	v := makeVerdict(
		verdict.Check{Name: "privacy", OK: true},
		verdict.Check{Name: "liberty", OK: false, Message: msg("scope exceeded")},
	)

	d1, _ := g.Normalize(v)
	d2, _ := g.Normalize(v)

	b1, _ := json.Marshal(d1)
	b2, _ := json.Marshal(d2)
	if string(b1) != string(b2) {
		t.Fatalf("decisions differ:\n%s\n%s", b1, b2)
	}
}

// #endregion normalize-tests

// #region frame-tests
func TestClassifyFrameKnownVerdicts(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	cases := []struct {
		raw   string
		want  FrameVerdict
		state string
	}{
		{"Safe", VerdictSafe, "safe"},
		{"Defer", VerdictDefer, "defer"},
		{"Deny", VerdictDeny, "deny"},
	}
	for _, tc := range cases {
		raw := verdict.RawDecision{Verdict: tc.raw, Payload: map[string]any{"verdict": tc.raw}}
		d, err := g.ClassifyFrame("round-f", raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.raw, err)
		}
		if d.Verdict != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.raw, tc.want, d.Verdict)
		}
		if d.Outcome() != tc.state {
			t.Fatalf("%s: expected state %s, got %s", tc.raw, tc.state, d.Outcome())
		}
		if d.Raw.Payload["verdict"] != tc.raw {
			t.Fatalf("%s: raw payload not carried", tc.raw)
		}
	}
}

func TestClassifyFrameUnknownVerdict(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	for _, v := range []string{"Unknown", "safe", "", "SAFE"} {
		d, err := g.ClassifyFrame("round-f", verdict.RawDecision{Verdict: v})
		if !errors.Is(err, verdict.ErrUnknownVerdict) {
			t.Fatalf("%q: expected ErrUnknownVerdict, got %v", v, err)
		}
		if d.Verdict != VerdictDeny || d.Permissive() {
			t.Fatalf("%q: unknown verdict must resolve to deny, got %s", v, d.Verdict)
		}
	}
}

// #endregion frame-tests

// #region union-tests
func TestGateDecisionUnion(t *testing.T) {
	decisions := []GateDecision{
		BatchDecision{RoundID: "a", Action: ActionProceed},
		BatchDecision{RoundID: "b", Action: ActionSuppress},
		FrameDecision{RoundID: "c", Verdict: VerdictSafe},
		FrameDecision{RoundID: "d", Verdict: VerdictDefer},
		FailClosedFrame("e"),
		FailClosedBatch("f", time.Time{}),
	}
	wantPermissive := []bool{true, false, true, false, false, false}
	for i, d := range decisions {
		if d.Permissive() != wantPermissive[i] {
			t.Errorf("%s: expected permissive=%v", d.Round(), wantPermissive[i])
		}
	}
}

// #endregion union-tests
