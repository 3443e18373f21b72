package verdict

import "time"

// #region records
// SleepStage is the hypnogram stage an epoch was scored in.
type SleepStage string

const (
	StageWake SleepStage = "Wake"
	StageN1   SleepStage = "N1"
	StageN2   SleepStage = "N2"
	StageN3   SleepStage = "N3"
	StageREM  SleepStage = "Rem"
)

// EpochRow is one scored neural epoch awaiting release downstream.
type EpochRow struct {
	EpochID                    int64      `json:"epoch_id"`
	SubjectID                  string     `json:"subject_id"`
	Timestamp                  string     `json:"timestamp"` // ISO8601
	SleepStage                 SleepStage `json:"sleep_stage"`
	ExcavationPriority         float64    `json:"excavation_priority"`
	LucidityLikelihood         float64    `json:"lucidity_likelihood"`
	PsychriskScore             float64    `json:"psychrisk_score"`
	EligibilityE               float64    `json:"eligibility_e"`
	ContainsInnerSpeech        bool       `json:"contains_inner_speech"`
	ContainsVisualPersons      bool       `json:"contains_visual_persons"`
	ContainsBiographicalMemory bool       `json:"contains_biographical_memory"`
}

// LedgerRow is one prior append-only ledger event for the same subject.
type LedgerRow struct {
	ID                   int64   `json:"id"`
	Timestamp            string  `json:"timestamp"` // ISO8601
	SubjectID            string  `json:"subject_id"`
	Event                string  `json:"event"`
	PersonScoringApplied bool    `json:"person_scoring_applied"`
	Message              *string `json:"message"`
}

// CandidateBatch is the payload of one batch round. It must not be mutated
// after it is handed to a round.
type CandidateBatch struct {
	Epochs []EpochRow
	Ledger []LedgerRow
}

// #endregion records

// #region policy
// PolicyEnvelope lists which neurorights protections are active for a round.
type PolicyEnvelope struct {
	MentalPrivacy       bool `json:"mental_privacy" yaml:"mental_privacy" toml:"mental_privacy"`
	CognitiveLiberty    bool `json:"cognitive_liberty" yaml:"cognitive_liberty" toml:"cognitive_liberty"`
	MentalIntegrity     bool `json:"mental_integrity" yaml:"mental_integrity" toml:"mental_integrity"`
	NonCommercialNeural bool `json:"non_commercial_neural" yaml:"non_commercial_neural" toml:"non_commercial_neural"`
	SoulNonAddressable  bool `json:"soul_non_addressable" yaml:"soul_non_addressable" toml:"soul_non_addressable"`
}

// StrictPolicy returns the envelope with every protection enabled.
func StrictPolicy() PolicyEnvelope {
	return PolicyEnvelope{
		MentalPrivacy:       true,
		CognitiveLiberty:    true,
		MentalIntegrity:     true,
		NonCommercialNeural: true,
		SoulNonAddressable:  true,
	}
}

// #endregion policy

// #region verdict
// Check is one atomic sub-result from the decision authority.
type Check struct {
	Name    string  `json:"name"`
	OK      bool    `json:"ok"`
	Message *string `json:"message,omitempty"`
}

// MessageText returns the diagnostic message or "" when none was sent.
func (c Check) MessageText() string {
	if c.Message == nil {
		return ""
	}
	return *c.Message
}

// VerdictResult is the per-round verdict assembled from the authority's checks.
// It deliberately has no all_ok field: see AllOK.
type VerdictResult struct {
	RoundID      string    `json:"round_id"`
	Checks       []Check   `json:"checks"`
	SubjectCount int       `json:"subject_count"`
	LedgerCount  int       `json:"ledger_count"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// AllOK is the conjunction over all checks. An empty check list is not
// evidence of safety and yields false.
func (v VerdictResult) AllOK() bool {
	if len(v.Checks) == 0 {
		return false
	}
	for _, c := range v.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// #endregion verdict

// #region batch-request
// BatchRequest is the body sent to the authority for the batch flavor.
type BatchRequest struct {
	Epochs []EpochRow     `json:"epochs"`
	Ledger []LedgerRow    `json:"ledger"`
	Policy PolicyEnvelope `json:"policy"`
}

// NewBatchRequest pairs a batch with its policy. Nil slices are sent as
// empty arrays so the authority never sees null.
func NewBatchRequest(batch CandidateBatch, policy PolicyEnvelope) BatchRequest {
	epochs := batch.Epochs
	if epochs == nil {
		epochs = []EpochRow{}
	}
	ledger := batch.Ledger
	if ledger == nil {
		ledger = []LedgerRow{}
	}
	return BatchRequest{Epochs: epochs, Ledger: ledger, Policy: policy}
}

// #endregion batch-request

// #region host-summary
// HostSummary is the ledger's view of a host, returned by ledger_getHostSummary.
type HostSummary struct {
	EcoBand       string         `json:"eco_band"`
	LifeforceBand string         `json:"lifeforce_band"`
	AdapterHealth map[string]any `json:"adapter_health,omitempty"`
	History       []any          `json:"history,omitempty"`
}

// #endregion host-summary
