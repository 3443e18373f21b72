package router

import (
	"context"
	"log/slog"

	"github.com/danielpatrickdp/adaptive-state/decision-gate/internal/gate"
)

// LogFeedback is the console feedback hook: one structured log line per
// frame verdict.
type LogFeedback struct {
	Logger *slog.Logger
}

func (f LogFeedback) Feedback(ctx context.Context, state string, d gate.FrameDecision) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if state != "safe" {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "[FEEDBACK] frame "+state, "round_id", d.RoundID, "verdict", string(d.Verdict))
}
