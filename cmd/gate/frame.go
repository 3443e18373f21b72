package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/round"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/router"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/telemetry"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/verdict"
)

var frameHost string

var frameCmd = &cobra.Command{
	Use:   "frame <update.json>",
	Short: "Propose a candidate update to the ledger as an evolution frame",
	Long: `Build an evolution frame from a candidate update and submit it. The
verdict is audited and reported; the command exits 1 unless the frame is Safe.`,
	Args: cobra.ExactArgs(1),
	RunE: runFrame,
}

func init() {
	frameCmd.Flags().StringVar(&frameHost, "host", "", "host id (defaults to the configured host)")
}

type frameReport struct {
	RoundID     string                 `json:"round_id"`
	FrameID     string                 `json:"frame_id"`
	Host        string                 `json:"host"`
	Verdict     string                 `json:"verdict"`
	Feedback    string                 `json:"feedback"`
	RawDecision map[string]any         `json:"raw_decision,omitempty"`
	Frame       verdict.EvolutionFrame `json:"frame"`
	Stage       string                 `json:"stage,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

func runFrame(cmd *cobra.Command, args []string) error {
	update, err := readUpdate(args[0])
	if err != nil {
		return err
	}
	host := frameHost
	if host == "" {
		host = cfg.Host
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
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return err
	}

	// No device is attached to the CLI: Safe frames are recorded, not applied.
	fr := round.NewFrameRound(auth, newGate(cfg),
		router.NewFrameRouter(sink, nil, router.LogFeedback{Logger: logger}, router.WithLogger(logger)),
		round.DefaultEnv(), host, round.WithLogger(logger), round.WithMetrics(metrics))
	out, runErr := fr.Run(ctx, update)

	rep := frameReport{
		RoundID:     out.Decision.RoundID,
		FrameID:     out.Frame.FrameID,
		Host:        out.Frame.Host,
		Verdict:     string(out.Decision.Verdict),
		Feedback:    out.Decision.Outcome(),
		RawDecision: out.Decision.Raw.Payload,
		Frame:       out.Frame,
		Stage:       out.Stage,
	}
	if runErr != nil {
		rep.Error = runErr.Error()
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else {
		fmt.Printf("frame_id=%s host=%s round_id=%s verdict=%s\n", rep.FrameID, rep.Host, rep.RoundID, rep.Verdict)
		if reason, ok := rep.RawDecision["reason"]; ok {
			fmt.Printf("reason=%v\n", reason)
		}
	}

	if runErr != nil {
		return runErr
	}
	if !out.Decision.Permissive() {
		return errDenied
	}
	return nil
}

func readUpdate(path string) (verdict.CandidateUpdate, error) {
	var u verdict.CandidateUpdate
	data, err := os.ReadFile(path)
	if err != nil {
		return u, fmt.Errorf("read update %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &u); err != nil {
		return u, fmt.Errorf("parse update %s: %w", path, err)
	}
	if u.FrameID == "" {
		return u, fmt.Errorf("update %s: frame_id is required", path)
	}
	return u, nil
}
