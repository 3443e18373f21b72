package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/config"
	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/telemetry"
)

// errDenied signals a round that completed but did not let the candidate
// through. main maps it to exit code 1 without printing it.
var errDenied = errors.New("candidate not approved")

var (
	configPath string
	jsonOutput bool

	cfg      *config.Config
	logger   *slog.Logger
	shutdown telemetry.ShutdownFunc
)

var rootCmd = &cobra.Command{
	Use:           "gate <command>",
	Short:         "Decision gate for neural epoch batches and evolution frames",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger = newLogger(cfg.Logging)
		slog.SetDefault(logger)

		shutdown, err = telemetry.Setup(cmd.Context(), "decision-gate")
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if shutdown != nil {
			if err := shutdown(context.WithoutCancel(cmd.Context())); err != nil {
				logger.Warn("[TELEMETRY] shutdown failed", "err", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("GATE_CONFIG"), "config file (.yaml, .yml or .toml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(frameCmd)
	rootCmd.AddCommand(summaryCmd)
}

func newLogger(l config.Logging) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errDenied) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
