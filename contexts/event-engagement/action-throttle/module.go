package actionthrottle

import (
	"log/slog"
	"time"

	"festrank/contexts/event-engagement/action-throttle/adapters/memory"
	"festrank/contexts/event-engagement/action-throttle/application"
	"festrank/contexts/event-engagement/action-throttle/ports"
)

type Module struct {
	Gate  application.Gate
	Store *memory.Store
}

type Dependencies struct {
	Store     ports.ThrottleStore
	Cooldowns map[string]time.Duration
	Disabled  bool
	Clock     ports.Clock
	Logger    *slog.Logger
}

func NewModule(deps Dependencies) Module {
	return Module{
		Gate: application.Gate{
			Store:     deps.Store,
			Cooldowns: deps.Cooldowns,
			Disabled:  deps.Disabled,
			Clock:     deps.Clock,
			Logger:    deps.Logger,
		},
	}
}

func NewInMemoryModule(cooldowns map[string]time.Duration, disabled bool, clock ports.Clock, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Store:     store,
		Cooldowns: cooldowns,
		Disabled:  disabled,
		Clock:     clock,
		Logger:    logger,
	})
	module.Store = store
	return module
}
