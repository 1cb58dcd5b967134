package workers

import (
	"context"
	"log/slog"
	"time"

	application "festrank/contexts/event-engagement/ranking-engine/application"
	"festrank/contexts/event-engagement/ranking-engine/application/commands"
	"festrank/contexts/event-engagement/ranking-engine/ports"
)

// BiasRecalculator is the scheduled batch job recomputing every voter
// bias, then marking the ranking cache stale so the next read picks up
// the new coefficients.
type BiasRecalculator struct {
	Biases   commands.BiasUseCase
	Rankings ports.RankingStore
	Interval time.Duration
	Logger   *slog.Logger
}

// Run executes RunOnce on the configured interval until the context is
// canceled. The first run happens immediately.
func (w BiasRecalculator) Run(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	w.RunOnce(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce recomputes all biases. The batch tolerates per-pair failures;
// only a failure to even start the batch leaves the cache untouched.
func (w BiasRecalculator) RunOnce(ctx context.Context) {
	logger := application.ResolveLogger(w.Logger)
	logger.Info("bias recalculation cycle started",
		"event", "bias_recalculator_started",
		"module", "event-engagement/ranking-engine",
		"layer", "worker",
	)

	result, err := w.Biases.RecalculateAll(ctx)
	if err != nil {
		logger.Error("bias recalculation cycle failed",
			"event", "bias_recalculator_failed",
			"module", "event-engagement/ranking-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return
	}

	if w.Rankings != nil {
		if err := w.Rankings.MarkStale(ctx); err != nil {
			logger.Warn("marking rankings stale failed",
				"event", "bias_recalculator_mark_stale_failed",
				"module", "event-engagement/ranking-engine",
				"layer", "worker",
				"error", err.Error(),
			)
		}
	}

	logger.Info("bias recalculation cycle completed",
		"event", "bias_recalculator_completed",
		"module", "event-engagement/ranking-engine",
		"layer", "worker",
		"updated", result.Updated,
		"failed", result.Failed,
	)
}
