package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	actionthrottle "festrank/contexts/event-engagement/action-throttle"
	"festrank/contexts/event-engagement/ranking-engine/adapters/memory"
	"festrank/contexts/event-engagement/ranking-engine/application/commands"
	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	domainerrors "festrank/contexts/event-engagement/ranking-engine/domain/errors"
	"festrank/contexts/event-engagement/ranking-engine/ports"

	"github.com/shopspring/decimal"
)

func newActionFixture(disabled bool) (*memory.Store, commands.ActionUseCase) {
	store := memory.NewStore()
	store.SetTeam(entities.Team{TeamID: 1, Name: "alpha", CityID: 1})
	store.SetUser(ports.UserProjection{UserID: 20, TeamID: 1})
	checkin := entities.ActionType{TypeID: 1, Code: "checkin", Value: decimal.NewFromInt(10), CooldownMS: 60_000}
	store.SetActionType(checkin)

	throttle := actionthrottle.NewInMemoryModule(
		map[string]time.Duration{"checkin": time.Minute},
		disabled,
		store,
		nil,
	)
	uc := commands.ActionUseCase{
		Repo:  store,
		Gate:  throttle.Gate,
		Types: map[string]entities.ActionType{"checkin": checkin},
		Clock: store,
		IDGen: store,
	}
	return store, uc
}

func TestPerformActionRecordsAndThrottles(t *testing.T) {
	store, uc := newActionFixture(false)
	cmd := commands.PerformActionCommand{ClientID: "device-1", UserID: 20, Code: "checkin", CityID: 1}

	action, err := uc.PerformAction(context.Background(), cmd)
	if err != nil {
		t.Fatalf("perform action failed: %v", err)
	}
	if action.TeamID != 1 || action.TypeID != 1 || action.ActionID == "" {
		t.Fatalf("unexpected action %+v", action)
	}

	if _, err := uc.PerformAction(context.Background(), cmd); !errors.Is(err, domainerrors.ErrActionThrottled) {
		t.Fatalf("expected ErrActionThrottled inside cooldown, got %v", err)
	}

	store.Advance(time.Minute)
	if _, err := uc.PerformAction(context.Background(), cmd); err != nil {
		t.Fatalf("perform action after cooldown failed: %v", err)
	}
	if got := len(store.Actions()); got != 2 {
		t.Fatalf("expected 2 recorded actions, got %d", got)
	}
}

func TestPerformActionUnknownType(t *testing.T) {
	_, uc := newActionFixture(false)
	_, err := uc.PerformAction(context.Background(), commands.PerformActionCommand{
		ClientID: "device-1",
		UserID:   20,
		Code:     "moonwalk",
	})
	if !errors.Is(err, domainerrors.ErrUnknownActionType) {
		t.Fatalf("expected ErrUnknownActionType, got %v", err)
	}
}

func TestPerformActionRollsBackCooldownOnWriteFailure(t *testing.T) {
	store, uc := newActionFixture(false)
	cmd := commands.PerformActionCommand{ClientID: "device-1", UserID: 20, Code: "checkin", CityID: 1}

	store.FailNextInsertAction()
	if _, err := uc.PerformAction(context.Background(), cmd); err == nil {
		t.Fatalf("expected insert failure to surface")
	}
	if got := len(store.Actions()); got != 0 {
		t.Fatalf("failed action must not be recorded, got %d", got)
	}

	// The optimistic cooldown mark was rolled back, so an immediate retry
	// goes through without waiting out the cooldown.
	if _, err := uc.PerformAction(context.Background(), cmd); err != nil {
		t.Fatalf("retry after rollback failed: %v", err)
	}
}

func TestPerformActionRollsBackOnUnknownUser(t *testing.T) {
	store, uc := newActionFixture(false)
	cmd := commands.PerformActionCommand{ClientID: "device-1", UserID: 999, Code: "checkin"}

	if _, err := uc.PerformAction(context.Background(), cmd); !errors.Is(err, domainerrors.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	cmd.UserID = 20
	if _, err := uc.PerformAction(context.Background(), cmd); err != nil {
		t.Fatalf("retry with valid user failed: %v", err)
	}
	if got := len(store.Actions()); got != 1 {
		t.Fatalf("expected 1 recorded action, got %d", got)
	}
}

func TestPerformActionKillSwitchBypassesCooldowns(t *testing.T) {
	store, uc := newActionFixture(true)
	cmd := commands.PerformActionCommand{ClientID: "device-1", UserID: 20, Code: "checkin", CityID: 1}

	for i := 0; i < 3; i++ {
		if _, err := uc.PerformAction(context.Background(), cmd); err != nil {
			t.Fatalf("run %d failed with throttling disabled: %v", i, err)
		}
	}
	if got := len(store.Actions()); got != 3 {
		t.Fatalf("expected 3 recorded actions, got %d", got)
	}
}
