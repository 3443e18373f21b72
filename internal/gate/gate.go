package gate

import (
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region gate
// Gate turns authority verdicts into closed-set decisions. It holds no state
// between calls and is safe for concurrent use.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Normalize maps a batch verdict to Proceed or Suppress.
// The mapping is pure: the same VerdictResult always yields the same decision.
// A contract defect in the checks still yields a (Suppress) decision, returned
// together with a *verdict.MalformedError.
func (g *Gate) Normalize(v verdict.VerdictResult) (BatchDecision, error) {
	failing := make([]string, 0, len(v.Checks))
	var defects []string

	for i, c := range v.Checks {
		silent := !c.OK && g.config.RequireFailureMessage && strings.TrimSpace(c.MessageText()) == ""
		if c.Name == "" || silent {
			defects = append(defects, checkLabel(i, c.Name))
		}
		if !c.OK {
			failing = append(failing, c.Name)
		}
	}

	decision := BatchDecision{
		RoundID:       v.RoundID,
		Action:        ActionSuppress,
		FailingChecks: failing,
		EvaluatedAt:   v.EvaluatedAt,
	}

	if len(defects) > 0 {
		return decision, &verdict.MalformedError{
			Reason: "checks missing name or failure message",
			Checks: defects,
		}
	}

	if v.AllOK() {
		decision.Action = ActionProceed
	}
	return decision, nil
}

// ClassifyFrame validates the authority's frame verdict against the closed
// set. An unrecognized verdict yields a Deny decision and a
// *verdict.UnknownVerdictError; it is never read as Safe.
func (g *Gate) ClassifyFrame(roundID string, raw verdict.RawDecision) (FrameDecision, error) {
	decision := FrameDecision{
		RoundID: roundID,
		Verdict: VerdictDeny,
		Raw:     raw,
	}
	switch FrameVerdict(raw.Verdict) {
	case VerdictSafe, VerdictDefer, VerdictDeny:
		decision.Verdict = FrameVerdict(raw.Verdict)
		return decision, nil
	default:
		return decision, &verdict.UnknownVerdictError{Verdict: raw.Verdict}
	}
}

// #endregion gate

// #region fail-closed
// FailClosedBatch is the decision used when no verdict could be obtained.
func FailClosedBatch(roundID string, evaluatedAt time.Time) BatchDecision {
	return BatchDecision{
		RoundID:       roundID,
		Action:        ActionSuppress,
		FailingChecks: []string{},
		EvaluatedAt:   evaluatedAt,
	}
}

// FailClosedFrame is the decision used when no frame verdict could be obtained.
func FailClosedFrame(roundID string) FrameDecision {
	return FrameDecision{
		RoundID: roundID,
		Verdict: VerdictDeny,
	}
}

// #endregion fail-closed

// #region helpers
func checkLabel(i int, name string) string {
	if name == "" {
		return fmt.Sprintf("#%d", i)
	}
	return name
}

// #endregion helpers
