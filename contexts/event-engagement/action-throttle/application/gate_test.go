package application_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	"festrank/contexts/event-engagement/action-throttle/adapters/memory"
	"festrank/contexts/event-engagement/action-throttle/application"
	domainerrors "festrank/contexts/event-engagement/action-throttle/domain/errors"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newGateFixture(disabled bool) (*memory.Store, *fakeClock, application.Gate) {
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	gate := application.Gate{
		Store: store,
		Cooldowns: map[string]time.Duration{
			"checkin": time.Minute,
			"wave":    0,
		},
		Disabled: disabled,
		Clock:    clock,
	}
	return store, clock, gate
}

func mustAllow(t *testing.T, gate application.Gate, clientID string, code string, want bool) {
	t.Helper()
	allowed, err := gate.CanDoAction(context.Background(), clientID, code)
	if err != nil {
		t.Fatalf("can-do check failed: %v", err)
	}
	if allowed != want {
		t.Fatalf("expected allowed=%v for %s/%s", want, clientID, code)
	}
}

func TestGateAllowsFirstExecutionThenEnforcesCooldown(t *testing.T) {
	_, clock, gate := newGateFixture(false)

	mustAllow(t, gate, "device-1", "checkin", true)
	if err := gate.ExecuteAction(context.Background(), "device-1", "checkin"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	mustAllow(t, gate, "device-1", "checkin", false)

	clock.advance(59 * time.Second)
	mustAllow(t, gate, "device-1", "checkin", false)

	clock.advance(time.Second)
	mustAllow(t, gate, "device-1", "checkin", true)
}

func TestGateIsolatesClients(t *testing.T) {
	_, _, gate := newGateFixture(false)
	if err := gate.ExecuteAction(context.Background(), "device-1", "checkin"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	mustAllow(t, gate, "device-1", "checkin", false)
	mustAllow(t, gate, "device-2", "checkin", true)
}

func TestGateZeroCooldownAlwaysAllows(t *testing.T) {
	_, _, gate := newGateFixture(false)
	for i := 0; i < 3; i++ {
		mustAllow(t, gate, "device-1", "wave", true)
		if err := gate.ExecuteAction(context.Background(), "device-1", "wave"); err != nil {
			t.Fatalf("execute %d failed: %v", i, err)
		}
	}
}

func TestGateUnknownCodeFailsClosed(t *testing.T) {
	_, _, gate := newGateFixture(false)
	mustAllow(t, gate, "device-1", "moonwalk", false)
}

func TestGateKillSwitch(t *testing.T) {
	store, _, gate := newGateFixture(true)

	mustAllow(t, gate, "device-1", "checkin", true)
	mustAllow(t, gate, "device-1", "moonwalk", true)
	if err := gate.ExecuteAction(context.Background(), "device-1", "checkin"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if err := gate.RollbackAction(context.Background(), "device-1", "checkin"); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	if record := store.Record("device-1"); record != nil {
		t.Fatalf("disabled gate must not touch the store, got %v", record)
	}
}

func TestGateRollbackRestoresPreviousTimestamp(t *testing.T) {
	store, clock, gate := newGateFixture(false)
	ctx := context.Background()

	if err := gate.ExecuteAction(ctx, "device-1", "checkin"); err != nil {
		t.Fatalf("first execute failed: %v", err)
	}
	firstMillis := clock.now.UnixMilli()

	clock.advance(2 * time.Minute)
	if err := gate.ExecuteAction(ctx, "device-1", "checkin"); err != nil {
		t.Fatalf("second execute failed: %v", err)
	}
	mustAllow(t, gate, "device-1", "checkin", false)

	if err := gate.RollbackAction(ctx, "device-1", "checkin"); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	record := store.Record("device-1")
	if got := record["checkin"]; got != strconv.FormatInt(firstMillis, 10) {
		t.Fatalf("expected restored timestamp %d, got %q", firstMillis, got)
	}
	// The restored timestamp is outside the cooldown window by now.
	mustAllow(t, gate, "device-1", "checkin", true)
}

func TestGateRollbackWithoutPriorExecutionLiftsCooldown(t *testing.T) {
	store, _, gate := newGateFixture(false)
	ctx := context.Background()

	if err := gate.ExecuteAction(ctx, "device-1", "checkin"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	mustAllow(t, gate, "device-1", "checkin", false)

	if err := gate.RollbackAction(ctx, "device-1", "checkin"); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	mustAllow(t, gate, "device-1", "checkin", true)
	if record := store.Record("device-1"); len(record) != 0 {
		t.Fatalf("expected cleared record, got %v", record)
	}
}

func TestGateRepeatedRollbackIsSafe(t *testing.T) {
	_, clock, gate := newGateFixture(false)
	ctx := context.Background()

	if err := gate.ExecuteAction(ctx, "device-1", "checkin"); err != nil {
		t.Fatalf("first execute failed: %v", err)
	}
	clock.advance(2 * time.Minute)
	if err := gate.ExecuteAction(ctx, "device-1", "checkin"); err != nil {
		t.Fatalf("second execute failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := gate.RollbackAction(ctx, "device-1", "checkin"); err != nil {
			t.Fatalf("rollback %d failed: %v", i, err)
		}
	}
	// Only one level of history exists; everything beyond it lifts the
	// cooldown instead of erroring.
	mustAllow(t, gate, "device-1", "checkin", true)
}

func TestGateSurfacesWriteConflicts(t *testing.T) {
	store, _, gate := newGateFixture(false)
	ctx := context.Background()

	store.FailNextWrite()
	if err := gate.ExecuteAction(ctx, "device-1", "checkin"); !errors.Is(err, domainerrors.ErrThrottleConflict) {
		t.Fatalf("expected ErrThrottleConflict, got %v", err)
	}

	if err := gate.ExecuteAction(ctx, "device-1", "checkin"); err != nil {
		t.Fatalf("execute after conflict failed: %v", err)
	}
	store.FailNextWrite()
	if err := gate.RollbackAction(ctx, "device-1", "checkin"); !errors.Is(err, domainerrors.ErrThrottleConflict) {
		t.Fatalf("expected rollback conflict, got %v", err)
	}
}

func TestGateLogsWriteConflicts(t *testing.T) {
	store, _, gate := newGateFixture(false)
	var buf bytes.Buffer
	gate.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	ctx := context.Background()

	store.FailNextWrite()
	if err := gate.ExecuteAction(ctx, "device-1", "checkin"); !errors.Is(err, domainerrors.ErrThrottleConflict) {
		t.Fatalf("expected ErrThrottleConflict, got %v", err)
	}
	if !strings.Contains(buf.String(), "throttle_execute_conflict") {
		t.Fatalf("expected execute conflict log, got %q", buf.String())
	}

	buf.Reset()
	if err := gate.ExecuteAction(ctx, "device-1", "checkin"); err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	store.FailNextWrite()
	if err := gate.RollbackAction(ctx, "device-1", "checkin"); !errors.Is(err, domainerrors.ErrThrottleConflict) {
		t.Fatalf("expected rollback conflict, got %v", err)
	}
	if !strings.Contains(buf.String(), "throttle_rollback_conflict") {
		t.Fatalf("expected rollback conflict log, got %q", buf.String())
	}
}
