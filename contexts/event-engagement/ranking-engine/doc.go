// Package rankingengine implements team rankings inside the
// event-engagement context.
//
// The module owns ranking computation (action points plus bias-weighted
// vote scores), voter bias recalculation, the shared ranking cache with
// bounded staleness, and the vote/action write paths. It keeps business
// rules in application/domain layers and isolates infrastructure
// concerns behind ports and adapters.
package rankingengine
