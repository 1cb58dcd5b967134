package memory

import (
	"context"
	"strconv"
	"sync"

	domainerrors "festrank/contexts/event-engagement/action-throttle/domain/errors"
	"festrank/contexts/event-engagement/action-throttle/ports"
)

const emptyPrevious = "null"

// Store is the in-memory ThrottleStore used in tests and local wiring.
// FailNextWrite simulates a concurrent writer detected mid-transaction.
type Store struct {
	mu      sync.Mutex
	records map[string]map[string]string

	failNextWrite bool
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]map[string]string),
	}
}

// FailNextWrite makes the next MarkExecuted or Rollback abort with the
// conflict sentinel, mimicking an optimistic transaction loss.
func (s *Store) FailNextWrite() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextWrite = true
}

// Record returns a copy of the client's raw record for assertions.
func (s *Store) Record(clientID string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[clientID]
	if !ok {
		return nil
	}
	copied := make(map[string]string, len(record))
	for field, value := range record {
		copied[field] = value
	}
	return copied
}

func (s *Store) LastExecuted(_ context.Context, clientID string, code string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[clientID]
	if !ok {
		return 0, false, nil
	}
	raw, ok := record[code]
	if !ok {
		return 0, false, nil
	}
	last, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return last, true, nil
}

func (s *Store) MarkExecuted(_ context.Context, clientID string, code string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextWrite {
		s.failNextWrite = false
		return domainerrors.ErrThrottleConflict
	}
	record, ok := s.records[clientID]
	if !ok {
		record = make(map[string]string)
		s.records[clientID] = record
	}
	previous, ok := record[code]
	if !ok {
		previous = emptyPrevious
	}
	record[code] = strconv.FormatInt(now, 10)
	record[code+"Previous"] = previous
	return nil
}

func (s *Store) Rollback(_ context.Context, clientID string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextWrite {
		s.failNextWrite = false
		return domainerrors.ErrThrottleConflict
	}
	record, ok := s.records[clientID]
	if !ok {
		return nil
	}
	previous, ok := record[code+"Previous"]
	if !ok || previous == emptyPrevious {
		delete(record, code)
		delete(record, code+"Previous")
		return nil
	}
	record[code] = previous
	record[code+"Previous"] = emptyPrevious
	return nil
}

var _ ports.ThrottleStore = (*Store)(nil)
