package redisadapter

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	domainerrors "festrank/contexts/event-engagement/action-throttle/domain/errors"
	"festrank/contexts/event-engagement/action-throttle/ports"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "throttle--"

	// emptyPrevious marks an unset undo slot. The sentinel keeps the
	// previous field present so one HGET distinguishes "never executed"
	// from "executed once, nothing to restore".
	emptyPrevious = "null"
)

// Store persists throttle records as one hash per client in the shared
// key-value store. Mutations run under WATCH so concurrent writers abort
// instead of interleaving.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

func NewStore(client *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		logger: logger,
	}
}

func recordKey(clientID string) string {
	return keyPrefix + clientID
}

func previousField(code string) string {
	return code + "Previous"
}

func (s *Store) LastExecuted(ctx context.Context, clientID string, code string) (int64, bool, error) {
	raw, err := s.client.HGet(ctx, recordKey(clientID), code).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, s.logError("throttle_store_last_executed_failed", err, clientID, code)
	}
	last, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, s.logError("throttle_store_last_executed_parse_failed", err, clientID, code)
	}
	return last, true, nil
}

func (s *Store) MarkExecuted(ctx context.Context, clientID string, code string, now int64) error {
	key := recordKey(clientID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		previous, err := tx.HGet(ctx, key, code).Result()
		if errors.Is(err, redis.Nil) {
			previous = emptyPrevious
		} else if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				code, strconv.FormatInt(now, 10),
				previousField(code), previous,
			)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domainerrors.ErrThrottleConflict
	}
	if err != nil {
		return s.logError("throttle_store_mark_executed_failed", err, clientID, code)
	}
	return nil
}

func (s *Store) Rollback(ctx context.Context, clientID string, code string) error {
	key := recordKey(clientID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		previous, err := tx.HGet(ctx, key, previousField(code)).Result()
		if errors.Is(err, redis.Nil) {
			previous = emptyPrevious
		} else if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous == emptyPrevious {
				pipe.HDel(ctx, key, code, previousField(code))
				return nil
			}
			pipe.HSet(ctx, key,
				code, previous,
				previousField(code), emptyPrevious,
			)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domainerrors.ErrThrottleConflict
	}
	if err != nil {
		return s.logError("throttle_store_rollback_failed", err, clientID, code)
	}
	return nil
}

func (s *Store) logError(event string, err error, clientID string, code string) error {
	s.logger.Error("throttle store operation failed",
		"event", event,
		"module", "event-engagement/action-throttle",
		"layer", "adapter",
		"client_id", clientID,
		"action_type", code,
		"error", err.Error(),
	)
	return err
}

var _ ports.ThrottleStore = (*Store)(nil)
