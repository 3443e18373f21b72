package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/gate"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region fixture-types
// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string            `json:"description"`
	GateConfig  FixtureGateConfig `json:"gate_config"`
	Rounds      []FixtureRound    `json:"rounds"`
}

// FixtureGateConfig mirrors gate.GateConfig with JSON tags. A missing
// require_failure_message keeps the strict default.
type FixtureGateConfig struct {
	RequireFailureMessage *bool `json:"require_failure_message,omitempty"`
}

// FixtureRound is one recorded authority response plus the expected result.
type FixtureRound struct {
	RoundID  string          `json:"round_id"`
	Flavor   Flavor          `json:"flavor"`
	Response json.RawMessage `json:"response"`
	Expected FixtureExpected `json:"expected"`
}

// FixtureExpected captures the expected outcome per round.
type FixtureExpected struct {
	Outcome       string   `json:"outcome"`
	FailingChecks []string `json:"failing_checks,omitempty"`
	Error         string   `json:"error,omitempty"` // "" | "malformed" | "unknown_verdict"
}

// Mismatch describes a round whose replay differs from its expectation.
type Mismatch struct {
	RoundID  string
	Field    string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s expected %q, got %q", m.RoundID, m.Field, m.Expected, m.Actual)
}

// #endregion fixture-types

// #region fixture-loader
// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToGateConfig converts the fixture config to a gate.GateConfig.
func (fc FixtureGateConfig) ToGateConfig() gate.GateConfig {
	cfg := gate.DefaultGateConfig()
	if fc.RequireFailureMessage != nil {
		cfg.RequireFailureMessage = *fc.RequireFailureMessage
	}
	return cfg
}

// ToRounds decodes every recorded response the way the channel does. A
// response that is not valid JSON is kept as nil and fails schema validation
// on replay.
func (f *Fixture) ToRounds() []Round {
	rounds := make([]Round, len(f.Rounds))
	for i, fr := range f.Rounds {
		rounds[i] = Round{RoundID: fr.RoundID, Flavor: fr.Flavor}
		if doc, err := verdict.DecodeJSON(bytes.TrimSpace(fr.Response)); err == nil {
			rounds[i].Response = doc
		}
	}
	return rounds
}

// Compare checks results against the fixture's expectations in order.
func (f *Fixture) Compare(results []ReplayResult) []Mismatch {
	var out []Mismatch
	if len(results) != len(f.Rounds) {
		out = append(out, Mismatch{
			Field:    "rounds",
			Expected: fmt.Sprint(len(f.Rounds)),
			Actual:   fmt.Sprint(len(results)),
		})
		return out
	}
	for i, fr := range f.Rounds {
		r := results[i]
		if r.Outcome != fr.Expected.Outcome {
			out = append(out, Mismatch{fr.RoundID, "outcome", fr.Expected.Outcome, r.Outcome})
		}
		if r.ErrorKind != fr.Expected.Error {
			out = append(out, Mismatch{fr.RoundID, "error", fr.Expected.Error, r.ErrorKind})
		}
		if fr.Flavor == FlavorBatch && !slices.Equal(r.FailingChecks, fr.Expected.FailingChecks) &&
			(len(r.FailingChecks) > 0 || len(fr.Expected.FailingChecks) > 0) {
			out = append(out, Mismatch{fr.RoundID, "failing_checks",
				fmt.Sprint(fr.Expected.FailingChecks), fmt.Sprint(r.FailingChecks)})
		}
	}
	return out
}

// #endregion fixture-loader
