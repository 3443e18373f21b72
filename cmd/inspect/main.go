package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/audit"
)

// #region main

func main() {
	dsn := flag.String("db", "", "audit database (sqlite path or postgres DSN)")
	driver := flag.String("driver", audit.DriverSQLite, "database driver: sqlite or pgx")
	last := flag.Int("last", 20, "show N most recent records")
	roundID := flag.String("round", "", "show single round detail")
	verify := flag.Bool("verify", false, "recompute and check each record's digest")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dsn == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/gate_audit.db [--driver sqlite|pgx] [--last N] [--round id] [--verify] [--json]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sink, err := audit.OpenSQLSink(ctx, *driver, *dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close()

	var tampered int
	if *roundID != "" {
		tampered, err = runDetailMode(ctx, sink, *roundID, *verify, *jsonOut)
	} else {
		tampered, err = runListMode(ctx, sink, *last, *verify, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if tampered > 0 {
		fmt.Fprintf(os.Stderr, "%d record(s) failed digest verification\n", tampered)
		os.Exit(3)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RoundID       string   `json:"round_id"`
	Kind          string   `json:"kind"`
	Outcome       string   `json:"outcome"`
	FailingChecks []string `json:"failing_checks,omitempty"`
	FrameID       string   `json:"frame_id,omitempty"`
	Stage         string   `json:"stage,omitempty"`
	EvaluatedAt   string   `json:"evaluated_at"`
	DigestOK      *bool    `json:"digest_ok,omitempty"`
}

func runListMode(ctx context.Context, sink *audit.SQLSink, last int, verify, jsonOut bool) (int, error) {
	records, err := sink.List(ctx, last)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no records found")
		return 0, nil
	}

	// List returns newest first; print chronologically.
	rows := make([]listRow, len(records))
	tampered := 0
	for i, rec := range records {
		row := listRow{
			RoundID:       rec.RoundID,
			Kind:          shortKind(rec.Kind),
			Outcome:       rec.Outcome,
			FailingChecks: rec.Detail.FailingChecks,
			FrameID:       rec.Detail.FrameID,
			Stage:         rec.Detail.Stage,
			EvaluatedAt:   rec.EvaluatedAt.Format(time.RFC3339),
		}
		if verify {
			ok, err := audit.Verify(rec)
			if err != nil {
				return 0, fmt.Errorf("verify %s: %w", rec.RoundID, err)
			}
			row.DigestOK = &ok
			if !ok {
				tampered++
			}
		}
		rows[len(records)-1-i] = row
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return tampered, enc.Encode(rows)
	}

	fmt.Printf("%-38s %-6s %-9s %-8s %-21s %s\n", "ROUND", "KIND", "OUTCOME", "DIGEST", "EVALUATED", "DETAIL")
	for _, r := range rows {
		digest := "-"
		if r.DigestOK != nil {
			digest = "ok"
			if !*r.DigestOK {
				digest = "BAD"
			}
		}
		fmt.Printf("%-38s %-6s %-9s %-8s %-21s %s\n", r.RoundID, r.Kind, r.Outcome, digest, r.EvaluatedAt, detailSummary(r))
	}

	counts, err := sink.Count(ctx)
	if err != nil {
		return tampered, err
	}
	outcomes := make([]string, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	parts := make([]string, len(outcomes))
	for i, o := range outcomes {
		parts[i] = fmt.Sprintf("%s=%d", o, counts[o])
	}
	fmt.Printf("\nTotals: %s\n", strings.Join(parts, " "))
	return tampered, nil
}

func detailSummary(r listRow) string {
	var parts []string
	if r.FrameID != "" {
		parts = append(parts, "frame="+r.FrameID)
	}
	if len(r.FailingChecks) > 0 {
		parts = append(parts, "failing="+strings.Join(r.FailingChecks, ","))
	}
	if r.Stage != "" {
		parts = append(parts, "failed_at="+r.Stage)
	}
	return strings.Join(parts, " ")
}

func shortKind(k audit.Kind) string {
	switch k {
	case audit.KindBatch:
		return "batch"
	case audit.KindFrame:
		return "frame"
	default:
		return string(k)
	}
}

// #endregion list-mode

// #region detail-mode

func runDetailMode(ctx context.Context, sink *audit.SQLSink, roundID string, verify, jsonOut bool) (int, error) {
	rec, err := sink.Get(ctx, roundID)
	if err != nil {
		return 0, err
	}

	tampered := 0
	var digestOK *bool
	if verify {
		ok, err := audit.Verify(rec)
		if err != nil {
			return 0, fmt.Errorf("verify %s: %w", roundID, err)
		}
		digestOK = &ok
		if !ok {
			tampered = 1
		}
	}

	if jsonOut {
		out := struct {
			audit.Record
			DigestOK *bool `json:"digest_ok,omitempty"`
		}{rec, digestOK}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return tampered, enc.Encode(out)
	}

	fmt.Printf("Round:      %s\n", rec.RoundID)
	fmt.Printf("Kind:       %s\n", rec.Kind)
	fmt.Printf("Outcome:    %s\n", rec.Outcome)
	fmt.Printf("Evaluated:  %s\n", rec.EvaluatedAt.Format(time.RFC3339Nano))
	if rec.Kind == audit.KindBatch {
		fmt.Printf("Epochs:     %d\n", rec.EpochCount)
		fmt.Printf("Ledger:     %d\n", rec.LedgerCount)
		fmt.Printf("Failing:    %s\n", strings.Join(rec.Detail.FailingChecks, ", "))
	} else {
		fmt.Printf("Frame:      %s\n", rec.Detail.FrameID)
		if len(rec.Detail.RawDecision) > 0 {
			raw, _ := json.Marshal(rec.Detail.RawDecision)
			fmt.Printf("Decision:   %s\n", raw)
		}
	}
	if rec.Detail.Stage != "" {
		fmt.Printf("Failed at:  %s (%s)\n", rec.Detail.Stage, rec.Detail.Error)
	}
	fmt.Printf("Digest:     %s\n", rec.Digest)
	if digestOK != nil {
		fmt.Printf("Verified:   %t\n", *digestOK)
	}
	return tampered, nil
}

// #endregion detail-mode
