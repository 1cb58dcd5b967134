package rankingengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	httpadapter "festrank/contexts/event-engagement/ranking-engine/adapters/http"
	"festrank/contexts/event-engagement/ranking-engine/adapters/memory"
	"festrank/contexts/event-engagement/ranking-engine/application/commands"
	"festrank/contexts/event-engagement/ranking-engine/application/queries"
	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	"festrank/contexts/event-engagement/ranking-engine/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Cache   *queries.CachedRankings
	Bias    commands.BiasUseCase
	Store   *memory.Store
}

type Dependencies struct {
	Rankings        ports.RankingRepository
	Biases          ports.BiasRepository
	Engagement      ports.EngagementRepository
	RankingStore    ports.RankingStore
	Gate            ports.ThrottleGate
	ActionTypes     map[string]entities.ActionType
	Clock           ports.Clock
	IDGen           ports.IDGenerator
	FreshnessWindow time.Duration
	UpdatingTTL     time.Duration
	Logger          *slog.Logger
}

func NewModule(deps Dependencies) Module {
	rankingQuery := queries.RankingQuery{
		Repo: deps.Rankings,
	}
	cachedRankings := queries.NewCachedRankings(
		deps.RankingStore,
		rankingQuery,
		deps.FreshnessWindow,
		deps.UpdatingTTL,
		deps.Logger,
	)
	biasUseCase := commands.BiasUseCase{
		Biases: deps.Biases,
		Logger: deps.Logger,
	}
	voteUseCase := commands.VoteUseCase{
		Repo:   deps.Engagement,
		Clock:  deps.Clock,
		Logger: deps.Logger,
	}
	actionUseCase := commands.ActionUseCase{
		Repo:   deps.Engagement,
		Gate:   deps.Gate,
		Types:  deps.ActionTypes,
		Clock:  deps.Clock,
		IDGen:  deps.IDGen,
		Logger: deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Rankings: cachedRankings,
			Votes:    voteUseCase,
			Actions:  actionUseCase,
			Logger:   deps.Logger,
		},
		Cache: cachedRankings,
		Bias:  biasUseCase,
	}
}

// NewInMemoryModule wires the module against a pre-seeded in-memory
// store. Action type definitions are read from the store once, matching
// the production bootstrap which loads them at startup.
func NewInMemoryModule(store *memory.Store, gate ports.ThrottleGate, logger *slog.Logger) (Module, error) {
	types, err := store.ListActionTypes(context.Background())
	if err != nil {
		return Module{}, fmt.Errorf("loading action types: %w", err)
	}
	byCode := make(map[string]entities.ActionType, len(types))
	for _, t := range types {
		byCode[t.Code] = t
	}
	module := NewModule(Dependencies{
		Rankings:        store,
		Biases:          store,
		Engagement:      store,
		RankingStore:    store,
		Gate:            gate,
		ActionTypes:     byCode,
		Clock:           store,
		IDGen:           store,
		FreshnessWindow: 5 * time.Minute,
		UpdatingTTL:     30 * time.Second,
		Logger:          logger,
	})
	module.Store = store
	return module, nil
}
