package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "festrank/contexts/event-engagement/ranking-engine/application"
	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	domainerrors "festrank/contexts/event-engagement/ranking-engine/domain/errors"
	"festrank/contexts/event-engagement/ranking-engine/ports"
)

// PerformActionCommand requests a point-earning action on behalf of a
// client. ClientID identifies the device for throttling; UserID
// attributes the points.
type PerformActionCommand struct {
	ClientID string
	UserID   int64
	Code     string
	CityID   int64
}

// ActionUseCase executes throttled actions with optimistic cooldown
// marking: the cooldown is recorded before the durable write and rolled
// back one level if that write fails.
type ActionUseCase struct {
	Repo   ports.EngagementRepository
	Gate   ports.ThrottleGate
	Types  map[string]entities.ActionType
	Clock  ports.Clock
	IDGen  ports.IDGenerator
	Logger *slog.Logger
}

func (uc ActionUseCase) PerformAction(ctx context.Context, cmd PerformActionCommand) (entities.Action, error) {
	logger := application.ResolveLogger(uc.Logger)

	code := strings.TrimSpace(cmd.Code)
	if strings.TrimSpace(cmd.ClientID) == "" || cmd.UserID <= 0 || code == "" {
		return entities.Action{}, domainerrors.ErrInvalidVoteInput
	}
	actionType, ok := uc.Types[code]
	if !ok {
		return entities.Action{}, domainerrors.ErrUnknownActionType
	}

	allowed, err := uc.Gate.CanDoAction(ctx, cmd.ClientID, code)
	if err != nil {
		return entities.Action{}, err
	}
	if !allowed {
		return entities.Action{}, domainerrors.ErrActionThrottled
	}
	if err := uc.Gate.ExecuteAction(ctx, cmd.ClientID, code); err != nil {
		return entities.Action{}, err
	}

	user, err := uc.Repo.GetUser(ctx, cmd.UserID)
	if err != nil {
		uc.rollback(ctx, cmd.ClientID, code)
		return entities.Action{}, err
	}

	actionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		uc.rollback(ctx, cmd.ClientID, code)
		return entities.Action{}, err
	}
	action := entities.Action{
		ActionID:  actionID,
		UserID:    user.UserID,
		TeamID:    user.TeamID,
		TypeID:    actionType.TypeID,
		CityID:    cmd.CityID,
		CreatedAt: uc.now(),
	}
	if err := uc.Repo.InsertAction(ctx, action); err != nil {
		uc.rollback(ctx, cmd.ClientID, code)
		return entities.Action{}, err
	}

	logger.Info("action performed",
		"event", "engagement_action_performed",
		"module", "event-engagement/ranking-engine",
		"layer", "application",
		"action_id", action.ActionID,
		"user_id", action.UserID,
		"team_id", action.TeamID,
		"action_type", code,
	)
	return action, nil
}

// rollback undoes the optimistic cooldown mark after a downstream
// failure. Rollback errors are logged only; the original failure is what
// the caller sees.
func (uc ActionUseCase) rollback(ctx context.Context, clientID string, code string) {
	logger := application.ResolveLogger(uc.Logger)
	if err := uc.Gate.RollbackAction(ctx, clientID, code); err != nil {
		logger.Warn("cooldown rollback failed",
			"event", "engagement_action_rollback_failed",
			"module", "event-engagement/ranking-engine",
			"layer", "application",
			"client_id", clientID,
			"action_type", code,
			"error", err.Error(),
		)
	}
}

func (uc ActionUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
