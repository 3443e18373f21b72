package audit

import (
	"context"
	"time"
)

// #region kind
// Kind names the flavor of round an audit record belongs to.
type Kind string

const (
	KindBatch Kind = "invariant_batch_evaluated"
	KindFrame Kind = "evolution_frame_evaluated"
)

// #endregion kind

// #region record
// Record is the single write-once audit entry for a round.
type Record struct {
	Kind        Kind      `json:"kind"`
	RoundID     string    `json:"round_id"`
	Outcome     string    `json:"outcome"` // "proceed" | "suppress" | "safe" | "defer" | "deny"
	Detail      Detail    `json:"detail"`
	EpochCount  int       `json:"epoch_count"`
	LedgerCount int       `json:"ledger_count"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	Digest      string    `json:"digest,omitempty"`
}

// Detail carries the failing checks (batch) or raw decision (frame), plus the
// failed stage when the round resolved fail-closed on an error.
type Detail struct {
	FailingChecks []string       `json:"failing_checks,omitempty"`
	FrameID       string         `json:"frame_id,omitempty"`
	RawDecision   map[string]any `json:"raw_decision,omitempty"`
	Stage         string         `json:"stage,omitempty"` // "channel" | "evaluate"
	Error         string         `json:"error,omitempty"`
}

// #endregion record

// #region sink
// Sink durably accepts one record per round. Append returns nil only once
// the record is confirmed written.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// #endregion sink
