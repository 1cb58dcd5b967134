package ports

import (
	"context"
	"time"

	"festrank/contexts/event-engagement/ranking-engine/domain/entities"

	"github.com/shopspring/decimal"
)

// VoterTeamPair identifies one bias recomputation unit: a voter and the
// team whose feed the voter has voted on.
type VoterTeamPair struct {
	UserID int64
	TeamID int64
}

// VoteAggregate is one vote row joined with the author team and the
// voter's persisted bias toward that team. HasBias is false when no
// voter_biases row exists for the pair.
type VoteAggregate struct {
	FeedItemID int64
	TeamID     int64
	Value      int
	Bias       float64
	HasBias    bool
}

// UserProjection is the slice of the users table the engagement commands
// need.
type UserProjection struct {
	UserID int64
	TeamID int64
	Banned bool
}

type RankingRepository interface {
	ListTeams(ctx context.Context, cityID *int64) ([]entities.Team, error)
	ListCityIDs(ctx context.Context) ([]int64, error)
	ActionPointsByTeam(ctx context.Context) (map[int64]decimal.Decimal, error)
	ListVoteAggregates(ctx context.Context) ([]VoteAggregate, error)
}

type BiasRepository interface {
	CountVotes(ctx context.Context, userID int64, teamID int64) (up int64, down int64, err error)
	UpsertBias(ctx context.Context, bias entities.VoterBias) error
	ListVoterTeamPairs(ctx context.Context) ([]VoterTeamPair, error)
}

type EngagementRepository interface {
	GetUser(ctx context.Context, userID int64) (UserProjection, error)
	GetFeedItemByUUID(ctx context.Context, itemUUID string) (entities.FeedItem, error)
	InsertVote(ctx context.Context, vote entities.Vote) error
	InsertAction(ctx context.Context, action entities.Action) error
	ListActionTypes(ctx context.Context) ([]entities.ActionType, error)
}

// RankingStore is the shared, eventually-consistent cache over the
// external key-value store. Snapshot scopes are "city_<id>" or
// "city_all".
type RankingStore interface {
	PutSnapshot(ctx context.Context, scope string, teams []entities.RankedTeam) error
	GetSnapshot(ctx context.Context, scope string) ([]entities.RankedTeam, bool, error)
	IsStale(ctx context.Context) (bool, error)
	MarkFresh(ctx context.Context, ttl time.Duration) error
	MarkStale(ctx context.Context) error
	// TryBeginUpdate is a best-effort check-then-set on the shared
	// updating flag. A narrow race can admit two concurrent refreshes;
	// duplicate work is wasted but not incorrect.
	TryBeginUpdate(ctx context.Context, ttl time.Duration) (bool, error)
	EndUpdate(ctx context.Context) error
}

// ThrottleGate is satisfied by the action-throttle service.
type ThrottleGate interface {
	CanDoAction(ctx context.Context, clientID string, code string) (bool, error)
	ExecuteAction(ctx context.Context, clientID string, code string) error
	RollbackAction(ctx context.Context, clientID string, code string) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
