package queries

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	application "festrank/contexts/event-engagement/ranking-engine/application"
	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	domainerrors "festrank/contexts/event-engagement/ranking-engine/domain/errors"
	"festrank/contexts/event-engagement/ranking-engine/ports"

	"golang.org/x/sync/singleflight"
)

// ScopeNationwide is the snapshot scope covering all cities.
const ScopeNationwide = "city_all"

// ScopeKey maps a city filter to its snapshot scope.
func ScopeKey(cityID *int64) string {
	if cityID == nil {
		return ScopeNationwide
	}
	return fmt.Sprintf("city_%d", *cityID)
}

// CachedRankings serves rankings from the shared store with bounded
// staleness. Reads never wait for a recomputation: a stale read returns
// the last good snapshot and triggers a supervised background refresh.
// Cross-process refresh dedup rides on the store's updating flag;
// in-process dedup uses singleflight.
type CachedRankings struct {
	Store           ports.RankingStore
	Rankings        RankingQuery
	FreshnessWindow time.Duration
	UpdatingTTL     time.Duration
	Logger          *slog.Logger

	group singleflight.Group
	wg    sync.WaitGroup
}

func NewCachedRankings(
	store ports.RankingStore,
	rankings RankingQuery,
	freshnessWindow time.Duration,
	updatingTTL time.Duration,
	logger *slog.Logger,
) *CachedRankings {
	if freshnessWindow <= 0 {
		freshnessWindow = 5 * time.Minute
	}
	if updatingTTL <= 0 {
		updatingTTL = 30 * time.Second
	}
	return &CachedRankings{
		Store:           store,
		Rankings:        rankings,
		FreshnessWindow: freshnessWindow,
		UpdatingTTL:     updatingTTL,
		Logger:          logger,
	}
}

// Initialize brings the cache to a servable state before the first read.
// A stale (or never populated) cache is refreshed synchronously so
// readers never observe missing data after startup. A refresh skipped in
// deference to another process is not enough here: if the store still
// holds no snapshot afterwards, this process recomputes anyway.
// Duplicate work at boot is acceptable, an empty cache is not.
func (uc *CachedRankings) Initialize(ctx context.Context) error {
	stale, err := uc.Store.IsStale(ctx)
	if err != nil {
		return err
	}
	if stale {
		if err := uc.refresh(ctx); err != nil {
			return err
		}
	}
	_, found, err := uc.Store.GetSnapshot(ctx, ScopeNationwide)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return uc.recompute(ctx)
}

// GetTeams returns the current snapshot for the requested scope. When the
// snapshot is stale a background refresh is triggered; the caller is
// served immediately from whatever snapshot exists.
func (uc *CachedRankings) GetTeams(ctx context.Context, cityID *int64) ([]entities.RankedTeam, error) {
	logger := application.ResolveLogger(uc.Logger)

	stale, err := uc.Store.IsStale(ctx)
	if err != nil {
		// The read path keeps serving; flag trouble is a refresh concern.
		logger.Warn("ranking staleness check failed",
			"event", "ranking_cache_staleness_check_failed",
			"module", "event-engagement/ranking-engine",
			"layer", "application",
			"error", err.Error(),
		)
	} else if stale {
		uc.spawnRefresh(ctx)
	}

	scope := ScopeKey(cityID)
	teams, found, err := uc.Store.GetSnapshot(ctx, scope)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domainerrors.ErrRankingsNotCached
	}
	return teams, nil
}

// Close waits for in-flight background refreshes to finish.
func (uc *CachedRankings) Close() error {
	uc.wg.Wait()
	return nil
}

// spawnRefresh starts a supervised, fire-and-forget refresh. Failures are
// logged and never propagated to the triggering reader. The refresh
// outlives the request context.
func (uc *CachedRankings) spawnRefresh(ctx context.Context) {
	logger := application.ResolveLogger(uc.Logger)
	background := context.WithoutCancel(ctx)

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		_, err, _ := uc.group.Do("refresh", func() (any, error) {
			return nil, uc.refresh(background)
		})
		if err != nil {
			logger.Error("background ranking refresh failed",
				"event", "ranking_cache_refresh_failed",
				"module", "event-engagement/ranking-engine",
				"layer", "application",
				"error", err.Error(),
			)
		}
	}()
}

// refresh guards recompute with the updating flag for best-effort
// cross-process dedup: if another process already holds it, this refresh
// is skipped. The flag is always cleared, and carries its own TTL so a
// crash mid-refresh cannot wedge the cache.
func (uc *CachedRankings) refresh(ctx context.Context) error {
	logger := application.ResolveLogger(uc.Logger)

	started, err := uc.Store.TryBeginUpdate(ctx, uc.UpdatingTTL)
	if err != nil {
		return err
	}
	if !started {
		logger.Info("ranking refresh skipped, another process is updating",
			"event", "ranking_cache_refresh_skipped",
			"module", "event-engagement/ranking-engine",
			"layer", "application",
		)
		return nil
	}
	defer func() {
		if endErr := uc.Store.EndUpdate(ctx); endErr != nil {
			logger.Warn("clearing ranking updating flag failed",
				"event", "ranking_cache_end_update_failed",
				"module", "event-engagement/ranking-engine",
				"layer", "application",
				"error", endErr.Error(),
			)
		}
	}()

	return uc.recompute(ctx)
}

// recompute stores every city snapshot plus the nationwide aggregate,
// then marks the cache fresh for the configured window.
func (uc *CachedRankings) recompute(ctx context.Context) error {
	logger := application.ResolveLogger(uc.Logger)

	cityIDs, err := uc.Rankings.Repo.ListCityIDs(ctx)
	if err != nil {
		return err
	}
	for _, cityID := range cityIDs {
		cityID := cityID
		ranked, err := uc.Rankings.Compute(ctx, &cityID)
		if err != nil {
			return err
		}
		if err := uc.Store.PutSnapshot(ctx, ScopeKey(&cityID), ranked); err != nil {
			return err
		}
	}

	nationwide, err := uc.Rankings.Compute(ctx, nil)
	if err != nil {
		return err
	}
	if err := uc.Store.PutSnapshot(ctx, ScopeNationwide, nationwide); err != nil {
		return err
	}
	if err := uc.Store.MarkFresh(ctx, uc.FreshnessWindow); err != nil {
		return err
	}

	logger.Info("ranking snapshots refreshed",
		"event", "ranking_cache_refreshed",
		"module", "event-engagement/ranking-engine",
		"layer", "application",
		"city_count", len(cityIDs),
		"nationwide_teams", len(nationwide),
	)
	return nil
}
