// Package actionthrottle implements per-client action cooldowns inside
// the event-engagement context.
//
// The module owns the cooldown gate with its one-level rollback protocol
// and the global kill switch. State lives in a shared store so every API
// process observes the same cooldowns.
package actionthrottle
