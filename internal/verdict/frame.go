package verdict

// #region candidate-update
// CandidateUpdate is a proposed neuromorphic firmware update before it is
// framed for the ledger.
type CandidateUpdate struct {
	FrameID        string         `json:"frame_id"`
	Plane          string         `json:"plane"`
	Scope          string         `json:"scope"`
	Flops          float64        `json:"flops"`
	NJ             float64        `json:"nj"`
	EcoIntent      string         `json:"eco_intent"`
	LatencyBand    string         `json:"latency_band"`
	ErrorBand      string         `json:"error_band"`
	EcoImpactBand  string         `json:"eco_impact_band"`
	GuardsSnapshot map[string]any `json:"guards_snapshot,omitempty"`
}

// #endregion candidate-update

// #region evolution-frame
// FrameCost is the compute and energy envelope an evolution frame asks for.
type FrameCost struct {
	FlopBudget float64 `json:"flop_budget"`
	NJBudget   float64 `json:"nJ_budget"`
	EcoIntent  string  `json:"eco_intent"`
}

// ExpectedEffect is the effect banding the proposer claims for a frame.
type ExpectedEffect struct {
	LatencyBand   string `json:"latency_band"`
	ErrorBand     string `json:"error_band"`
	EcoImpactBand string `json:"eco_impact_band"`
}

// EvolutionFrame is the envelope submitted to ledger_submitEvolutionFrame.
type EvolutionFrame struct {
	Host           string         `json:"host"`
	FrameID        string         `json:"frame_id"`
	Plane          string         `json:"plane"`
	Scope          string         `json:"scope"`
	Cost           FrameCost      `json:"cost"`
	ExpectedEffect ExpectedEffect `json:"expected_effect"`
	GuardsSnapshot map[string]any `json:"guards_snapshot"`
}

// BuildFrame wraps a candidate update in the frame envelope for host.
func BuildFrame(host string, u CandidateUpdate) EvolutionFrame {
	guards := u.GuardsSnapshot
	if guards == nil {
		guards = map[string]any{}
	}
	return EvolutionFrame{
		Host:    host,
		FrameID: u.FrameID,
		Plane:   u.Plane,
		Scope:   u.Scope,
		Cost: FrameCost{
			FlopBudget: u.Flops,
			NJBudget:   u.NJ,
			EcoIntent:  u.EcoIntent,
		},
		ExpectedEffect: ExpectedEffect{
			LatencyBand:   u.LatencyBand,
			ErrorBand:     u.ErrorBand,
			EcoImpactBand: u.EcoImpactBand,
		},
		GuardsSnapshot: guards,
	}
}

// #endregion evolution-frame

// #region raw-decision
// RawDecision is the authority's answer to a frame submission. Verdict is
// copied out of Payload unvalidated; Payload keeps everything the authority
// sent, verdict included.
type RawDecision struct {
	Verdict string         `json:"verdict"`
	Payload map[string]any `json:"payload"`
}

// #endregion raw-decision
