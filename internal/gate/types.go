package gate

import (
	"time"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region action
// Action is the batch-flavor outcome.
type Action string

const (
	ActionProceed  Action = "proceed"
	ActionSuppress Action = "suppress"
)

// #endregion action

// #region frame-verdict
// FrameVerdict is the frame-flavor outcome. Values match the authority's wire
// spelling exactly.
type FrameVerdict string

const (
	VerdictSafe  FrameVerdict = "Safe"
	VerdictDefer FrameVerdict = "Defer"
	VerdictDeny  FrameVerdict = "Deny"
)

// FeedbackState is the lower-case state name handed to feedback hooks.
func (v FrameVerdict) FeedbackState() string {
	switch v {
	case VerdictSafe:
		return "safe"
	case VerdictDefer:
		return "defer"
	default:
		return "deny"
	}
}

// #endregion frame-verdict

// #region gate-config
// GateConfig holds the evaluator's contract strictness.
type GateConfig struct {
	RequireFailureMessage bool // a failing check with no message is malformed
}

// DefaultGateConfig returns the strict contract.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		RequireFailureMessage: true,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the closed union of BatchDecision and FrameDecision.
type GateDecision interface {
	Round() string
	Outcome() string
	Permissive() bool
	gateDecision()
}

// BatchDecision is the normalized outcome of a batch round.
type BatchDecision struct {
	RoundID       string    `json:"round_id"`
	Action        Action    `json:"action"`
	FailingChecks []string  `json:"failing_checks"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

func (d BatchDecision) Round() string    { return d.RoundID }
func (d BatchDecision) Outcome() string  { return string(d.Action) }
func (d BatchDecision) Permissive() bool { return d.Action == ActionProceed }
func (BatchDecision) gateDecision()      {}

// FrameDecision is the validated outcome of a frame round.
type FrameDecision struct {
	RoundID string              `json:"round_id"`
	Verdict FrameVerdict        `json:"verdict"`
	Raw     verdict.RawDecision `json:"raw_decision"`
}

func (d FrameDecision) Round() string    { return d.RoundID }
func (d FrameDecision) Outcome() string  { return d.Verdict.FeedbackState() }
func (d FrameDecision) Permissive() bool { return d.Verdict == VerdictSafe }
func (FrameDecision) gateDecision()      {}

// #endregion gate-decision
