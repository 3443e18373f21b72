// Package shard reads epoch and ledger rows from CSV exports. Columns are
// matched by header name, so column order does not matter.
package shard

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

// #region columns
var epochColumns = []string{
	"epoch_id", "subject_id", "timestamp", "sleep_stage",
	"excavation_priority", "lucidity_likelihood", "psychrisk_score", "eligibility_e",
	"contains_inner_speech", "contains_visual_persons", "contains_biographical_memory",
}

var ledgerColumns = []string{
	"id", "timestamp", "subject_id", "event", "person_scoring_applied", "message",
}

var stages = map[string]verdict.SleepStage{
	"wake": verdict.StageWake,
	"n1":   verdict.StageN1,
	"n2":   verdict.StageN2,
	"n3":   verdict.StageN3,
	"rem":  verdict.StageREM,
}

// #endregion columns

// #region readers
// ReadEpochs parses epoch rows from r.
func ReadEpochs(r io.Reader) ([]verdict.EpochRow, error) {
	rows, err := readTable(r, epochColumns, nil)
	if err != nil {
		return nil, fmt.Errorf("read epochs: %w", err)
	}
	out := make([]verdict.EpochRow, 0, len(rows))
	for _, row := range rows {
		e, err := parseEpoch(row)
		if err != nil {
			return nil, fmt.Errorf("read epochs: line %d: %w", row.line, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// ReadLedger parses ledger rows from r. The message column is optional; an
// empty cell is a missing message.
func ReadLedger(r io.Reader) ([]verdict.LedgerRow, error) {
	rows, err := readTable(r, ledgerColumns, map[string]bool{"message": true})
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	out := make([]verdict.LedgerRow, 0, len(rows))
	for _, row := range rows {
		l, err := parseLedger(row)
		if err != nil {
			return nil, fmt.Errorf("read ledger: line %d: %w", row.line, err)
		}
		out = append(out, l)
	}
	return out, nil
}

// LoadBatch reads an epochs CSV and a ledger CSV into one candidate batch.
// An empty ledgerPath gives an empty ledger.
func LoadBatch(epochsPath, ledgerPath string) (verdict.CandidateBatch, error) {
	batch := verdict.CandidateBatch{Ledger: []verdict.LedgerRow{}}
	f, err := os.Open(epochsPath)
	if err != nil {
		return batch, fmt.Errorf("open epochs: %w", err)
	}
	defer f.Close()
	if batch.Epochs, err = ReadEpochs(f); err != nil {
		return batch, err
	}

	if ledgerPath == "" {
		return batch, nil
	}
	g, err := os.Open(ledgerPath)
	if err != nil {
		return batch, fmt.Errorf("open ledger: %w", err)
	}
	defer g.Close()
	if batch.Ledger, err = ReadLedger(g); err != nil {
		return batch, err
	}
	return batch, nil
}

// #endregion readers

// #region table
type record struct {
	line   int
	fields map[string]string
}

func (r record) get(col string) string { return r.fields[col] }

func readTable(r io.Reader, required []string, optional map[string]bool) ([]record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("missing header row")
	}
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok && !optional[col] {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var out []record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		rec := record{line: line, fields: make(map[string]string, len(required))}
		for _, col := range required {
			if i, ok := index[col]; ok && i < len(fields) {
				rec.fields[col] = strings.TrimSpace(fields[i])
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// #endregion table

// #region parse
func parseEpoch(r record) (verdict.EpochRow, error) {
	var e verdict.EpochRow
	var err error
	if e.EpochID, err = strconv.ParseInt(r.get("epoch_id"), 10, 64); err != nil {
		return e, fmt.Errorf("epoch_id: %w", err)
	}
	e.SubjectID = r.get("subject_id")
	e.Timestamp = r.get("timestamp")
	stage, ok := stages[strings.ToLower(r.get("sleep_stage"))]
	if !ok {
		return e, fmt.Errorf("sleep_stage: unknown stage %q", r.get("sleep_stage"))
	}
	e.SleepStage = stage

	floats := []struct {
		col string
		dst *float64
	}{
		{"excavation_priority", &e.ExcavationPriority},
		{"lucidity_likelihood", &e.LucidityLikelihood},
		{"psychrisk_score", &e.PsychriskScore},
		{"eligibility_e", &e.EligibilityE},
	}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(r.get(f.col), 64); err != nil {
			return e, fmt.Errorf("%s: %w", f.col, err)
		}
	}

	bools := []struct {
		col string
		dst *bool
	}{
		{"contains_inner_speech", &e.ContainsInnerSpeech},
		{"contains_visual_persons", &e.ContainsVisualPersons},
		{"contains_biographical_memory", &e.ContainsBiographicalMemory},
	}
	for _, b := range bools {
		if *b.dst, err = strconv.ParseBool(r.get(b.col)); err != nil {
			return e, fmt.Errorf("%s: %w", b.col, err)
		}
	}
	return e, nil
}

func parseLedger(r record) (verdict.LedgerRow, error) {
	var l verdict.LedgerRow
	var err error
	if l.ID, err = strconv.ParseInt(r.get("id"), 10, 64); err != nil {
		return l, fmt.Errorf("id: %w", err)
	}
	l.Timestamp = r.get("timestamp")
	l.SubjectID = r.get("subject_id")
	l.Event = r.get("event")
	if l.PersonScoringApplied, err = strconv.ParseBool(r.get("person_scoring_applied")); err != nil {
		return l, fmt.Errorf("person_scoring_applied: %w", err)
	}
	if m := r.get("message"); m != "" {
		l.Message = &m
	}
	return l, nil
}

// #endregion parse
