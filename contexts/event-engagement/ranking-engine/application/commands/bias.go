package commands

import (
	"context"
	"log/slog"

	application "festrank/contexts/event-engagement/ranking-engine/application"
	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	"festrank/contexts/event-engagement/ranking-engine/domain/scoring"
	"festrank/contexts/event-engagement/ranking-engine/ports"
)

// BiasUseCase recomputes voter trust coefficients from vote history and
// persists them idempotently.
type BiasUseCase struct {
	Biases ports.BiasRepository
	Logger *slog.Logger
}

// BiasBatchResult reports a bulk recomputation outcome. Per-pair failures
// do not abort the batch; only their count is surfaced.
type BiasBatchResult struct {
	Updated int
	Failed  int
}

// Recalculate computes the voter's bias toward one team and upserts the
// (user, team) row. The upsert is a single conditional statement so
// concurrent workers recomputing the same pair stay correct; the store's
// unique key resolves the race.
func (uc BiasUseCase) Recalculate(ctx context.Context, userID int64, teamID int64) (float64, error) {
	up, down, err := uc.Biases.CountVotes(ctx, userID, teamID)
	if err != nil {
		return 0, err
	}
	bias := scoring.Bias(float64(up), float64(down))
	if err := uc.Biases.UpsertBias(ctx, entities.VoterBias{
		UserID: userID,
		TeamID: teamID,
		Bias:   bias,
	}); err != nil {
		return 0, err
	}
	return bias, nil
}

// RecalculateAll recomputes biases for every (voter, team) pair with vote
// history. Pair failures (a team deleted mid-run, for instance) are
// logged and skipped so the rest of the batch completes.
func (uc BiasUseCase) RecalculateAll(ctx context.Context) (BiasBatchResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	pairs, err := uc.Biases.ListVoterTeamPairs(ctx)
	if err != nil {
		return BiasBatchResult{}, err
	}

	var result BiasBatchResult
	for _, pair := range pairs {
		if _, err := uc.Recalculate(ctx, pair.UserID, pair.TeamID); err != nil {
			result.Failed++
			logger.Warn("bias recalculation failed for pair",
				"event", "bias_recalculate_pair_failed",
				"module", "event-engagement/ranking-engine",
				"layer", "application",
				"user_id", pair.UserID,
				"team_id", pair.TeamID,
				"error", err.Error(),
			)
			continue
		}
		result.Updated++
	}

	logger.Info("bias recalculation batch completed",
		"event", "bias_recalculate_batch_completed",
		"module", "event-engagement/ranking-engine",
		"layer", "application",
		"updated", result.Updated,
		"failed", result.Failed,
	)
	return result, nil
}
