package errors

import "errors"

var (
	// ErrThrottleConflict reports an aborted optimistic transaction: a
	// concurrent writer mutated the client's record between observation
	// and write. Callers decide retry policy; the gate does not retry.
	ErrThrottleConflict = errors.New("throttle record modified concurrently")
)
