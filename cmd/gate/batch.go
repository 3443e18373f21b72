package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/config"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/round"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/router"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/shard"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/telemetry"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

var (
	batchEpochs []string
	batchLedger []string
	batchPolicy string
)

var batchCmd = &cobra.Command{
	Use:   "batch --epochs epochs.csv [--ledger ledger.csv] [--policy policy.json]",
	Short: "Gate epoch batches through the invariant checker",
	Long: `Gate one or more epoch batches. Each --epochs file pairs with the --ledger
file at the same position; a missing ledger means an empty ledger. Batches
run concurrently up to the configured parallelism. Exits 1 unless every
batch proceeds.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringSliceVar(&batchEpochs, "epochs", nil, "epoch CSV file (repeatable)")
	batchCmd.Flags().StringSliceVar(&batchLedger, "ledger", nil, "ledger CSV file, paired with --epochs by position")
	batchCmd.Flags().StringVar(&batchPolicy, "policy", "", "policy envelope file (.json, .yaml); defaults to the configured policy")
	_ = batchCmd.MarkFlagRequired("epochs")
}

type batchReport struct {
	Source          string          `json:"source"`
	RoundID         string          `json:"round_id"`
	AllInvariantsOK bool            `json:"all_invariants_ok"`
	Outcome         string          `json:"outcome"`
	FailingChecks   []string        `json:"failing_checks"`
	Checks          []verdict.Check `json:"checks"`
	Stage           string          `json:"stage,omitempty"`
	Error           string          `json:"error,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	if len(batchLedger) > len(batchEpochs) {
		return fmt.Errorf("got %d --ledger files for %d --epochs files", len(batchLedger), len(batchEpochs))
	}
	policy := cfg.Policy
	if batchPolicy != "" {
		p, err := config.LoadPolicy(batchPolicy)
		if err != nil {
			return err
		}
		policy = p
	}

	jobs := make([]round.BatchJob, len(batchEpochs))
	for i, epochs := range batchEpochs {
		ledger := ""
		if i < len(batchLedger) {
			ledger = batchLedger[i]
		}
		b, err := shard.LoadBatch(epochs, ledger)
		if err != nil {
			return err
		}
		jobs[i] = round.BatchJob{Batch: b, Policy: policy}
	}

	ctx := cmd.Context()
	var cl closers
	defer func() {
		if err := cl.close(); err != nil {
			logger.Warn("[ROUND] cleanup failed", "err", err)
		}
	}()

	auth, err := openAuthority(cfg, &cl)
	if err != nil {
		return err
	}
	sink, err := openSink(ctx, cfg, &cl)
	if err != nil {
		return err
	}
	fwd, err := openForwarder(cfg, &cl)
	if err != nil {
		return err
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return err
	}

	r := round.NewBatchRound(auth, newGate(cfg),
		router.NewBatchRouter(sink, fwd, router.WithLogger(logger)),
		round.DefaultEnv(), round.WithLogger(logger), round.WithMetrics(metrics))
	results := round.RunBatches(ctx, r, jobs, cfg.Parallelism)

	allProceed := true
	reports := make([]batchReport, len(results))
	for i, res := range results {
		out := res.Outcome
		reports[i] = batchReport{
			Source:          batchEpochs[i],
			RoundID:         out.Decision.RoundID,
			AllInvariantsOK: out.Decision.Permissive(),
			Outcome:         out.Decision.Outcome(),
			FailingChecks:   out.Decision.FailingChecks,
			Checks:          out.Verdict.Checks,
			Stage:           out.Stage,
		}
		if res.Err != nil {
			reports[i].Error = res.Err.Error()
		}
		if !out.Decision.Permissive() || res.Err != nil {
			allProceed = false
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		printBatchReports(reports)
	}

	if !allProceed {
		return errDenied
	}
	return nil
}

func printBatchReports(reports []batchReport) {
	for i, rep := range reports {
		if len(reports) > 1 {
			if i > 0 {
				fmt.Println()
			}
			fmt.Printf("batch source=%q round_id=%s\n", rep.Source, rep.RoundID)
		}
		fmt.Printf("all_invariants_ok=%t\n", rep.AllInvariantsOK)
		for _, c := range rep.Checks {
			fmt.Printf("invariant name=%q ok=%t message=%s\n", c.Name, c.OK, c.MessageText())
		}
		if rep.Error != "" {
			fmt.Fprintf(os.Stderr, "round %s failed closed at %s: %s\n", rep.RoundID, rep.Stage, rep.Error)
		}
	}
}
