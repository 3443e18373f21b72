package replay

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/gate"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region types
// Flavor names which half of the gate a recorded round exercises.
type Flavor string

const (
	FlavorBatch Flavor = "batch"
	FlavorFrame Flavor = "frame"
)

// Error kinds reported in ReplayResult.ErrorKind.
const (
	ErrKindNone           = ""
	ErrKindMalformed      = "malformed"
	ErrKindUnknownVerdict = "unknown_verdict"
)

// Round is one recorded authority response to replay. Response is the
// decoded JSON body exactly as the authority sent it: {"checks": [...]} for
// batch rounds, the JSON-RPC result object for frame rounds.
type Round struct {
	RoundID  string
	Flavor   Flavor
	Response any
}

// ReplayResult captures how the current evaluator resolves one round.
type ReplayResult struct {
	RoundID       string
	Flavor        Flavor
	Outcome       string // "proceed" | "suppress" | "safe" | "defer" | "deny"
	FailingChecks []string
	ErrorKind     string
	Err           error
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalRounds int
	Outcomes    map[string]int
	Errors      int
}

// #endregion types

// #region replay
// Replay decodes and evaluates every round in memory. No channel, sink or
// side effect is involved, so identical input always gives identical output.
func Replay(rounds []Round, config gate.GateConfig) []ReplayResult {
	g := gate.NewGate(config)
	results := make([]ReplayResult, 0, len(rounds))

	for _, r := range rounds {
		res := ReplayResult{RoundID: r.RoundID, Flavor: r.Flavor}
		switch r.Flavor {
		case FlavorBatch:
			replayBatch(g, r, &res)
		case FlavorFrame:
			replayFrame(g, r, &res)
		default:
			res.Outcome = string(gate.ActionSuppress)
			res.Err = fmt.Errorf("unknown flavor %q", r.Flavor)
			res.ErrorKind = ErrKindMalformed
		}
		results = append(results, res)
	}
	return results
}

func replayBatch(g *gate.Gate, r Round, res *ReplayResult) {
	checks, err := verdict.DecodeChecks(r.Response)
	if err != nil {
		d := gate.FailClosedBatch(r.RoundID, time.Time{})
		res.Outcome = d.Outcome()
		res.FailingChecks = d.FailingChecks
		res.setErr(err)
		return
	}
	d, err := g.Normalize(verdict.VerdictResult{RoundID: r.RoundID, Checks: checks})
	res.Outcome = d.Outcome()
	res.FailingChecks = d.FailingChecks
	res.setErr(err)
}

func replayFrame(g *gate.Gate, r Round, res *ReplayResult) {
	raw, err := verdict.DecodeRawDecision(r.Response)
	if err != nil {
		res.Outcome = gate.FailClosedFrame(r.RoundID).Outcome()
		res.setErr(err)
		return
	}
	d, err := g.ClassifyFrame(r.RoundID, raw)
	res.Outcome = d.Outcome()
	res.setErr(err)
}

func (res *ReplayResult) setErr(err error) {
	res.Err = err
	switch {
	case err == nil:
		res.ErrorKind = ErrKindNone
	case errors.Is(err, verdict.ErrUnknownVerdict):
		res.ErrorKind = ErrKindUnknownVerdict
	default:
		res.ErrorKind = ErrKindMalformed
	}
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{
		TotalRounds: len(results),
		Outcomes:    make(map[string]int),
	}
	for _, r := range results {
		s.Outcomes[r.Outcome]++
		if r.Err != nil {
			s.Errors++
		}
	}
	return s
}

// #endregion replay
