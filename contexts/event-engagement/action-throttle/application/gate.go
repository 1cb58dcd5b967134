package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainerrors "festrank/contexts/event-engagement/action-throttle/domain/errors"
	"festrank/contexts/event-engagement/action-throttle/ports"
)

// Gate enforces per-client, per-action-type cooldowns backed by the
// shared store. Cooldowns are loaded once at startup; Disabled is the
// global kill switch that turns every operation into an allow/no-op.
type Gate struct {
	Store     ports.ThrottleStore
	Cooldowns map[string]time.Duration
	Disabled  bool
	Clock     ports.Clock
	Logger    *slog.Logger
}

// CanDoAction reports whether the client may execute the action type.
// An action type missing from the loaded lookup fails closed; a known
// type with zero cooldown is always allowed. The asymmetry is a product
// decision: unrecognized codes must never slip through unthrottled.
func (g Gate) CanDoAction(ctx context.Context, clientID string, code string) (bool, error) {
	if g.Disabled {
		return true, nil
	}
	cooldown, known := g.Cooldowns[strings.TrimSpace(code)]
	if !known {
		return false, nil
	}

	last, found, err := g.Store.LastExecuted(ctx, strings.TrimSpace(clientID), strings.TrimSpace(code))
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return g.now().UnixMilli() >= last+cooldown.Milliseconds(), nil
}

// ExecuteAction marks the action as executed now, preserving the prior
// timestamp in the one-level undo slot.
func (g Gate) ExecuteAction(ctx context.Context, clientID string, code string) error {
	if g.Disabled {
		return nil
	}
	err := g.Store.MarkExecuted(ctx, strings.TrimSpace(clientID), strings.TrimSpace(code), g.now().UnixMilli())
	if errors.Is(err, domainerrors.ErrThrottleConflict) {
		g.logConflict("execute", clientID, code)
	}
	return err
}

// RollbackAction restores the cooldown state preceding the most recent
// ExecuteAction. With no prior execution the cooldown is lifted entirely;
// repeating the rollback is a no-op, not an error.
func (g Gate) RollbackAction(ctx context.Context, clientID string, code string) error {
	if g.Disabled {
		return nil
	}
	err := g.Store.Rollback(ctx, strings.TrimSpace(clientID), strings.TrimSpace(code))
	if errors.Is(err, domainerrors.ErrThrottleConflict) {
		g.logConflict("rollback", clientID, code)
	}
	return err
}

func (g Gate) logConflict(op string, clientID string, code string) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("throttle write conflict",
		"event", "throttle_"+op+"_conflict",
		"module", "event-engagement/action-throttle",
		"layer", "application",
		"client_id", clientID,
		"action_type", code,
	)
}

func (g Gate) now() time.Time {
	now := time.Now().UTC()
	if g.Clock != nil {
		now = g.Clock.Now().UTC()
	}
	return now
}
