package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	domainerrors "festrank/contexts/event-engagement/ranking-engine/domain/errors"
	"festrank/contexts/event-engagement/ranking-engine/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type biasKey struct {
	userID int64
	teamID int64
}

// Store is the in-memory implementation of every ranking-engine port,
// used for tests and local wiring. The cache side models flag TTLs
// against the store's own clock so staleness can be driven by advancing
// time.
type Store struct {
	mu sync.RWMutex

	now time.Time

	cities      map[int64]entities.City
	teams       map[int64]entities.Team
	users       map[int64]ports.UserProjection
	feedItems   map[int64]entities.FeedItem
	votes       []entities.Vote
	biases      map[biasKey]float64
	actionTypes map[int64]entities.ActionType
	actions     []entities.Action

	snapshots     map[string][]entities.RankedTeam
	snapshotPuts  int
	freshUntil    time.Time
	updatingUntil time.Time

	failBiasTeams    map[int64]bool
	failInsertAction bool
}

func NewStore() *Store {
	return &Store{
		now:           time.Now().UTC(),
		cities:        make(map[int64]entities.City),
		teams:         make(map[int64]entities.Team),
		users:         make(map[int64]ports.UserProjection),
		feedItems:     make(map[int64]entities.FeedItem),
		biases:        make(map[biasKey]float64),
		actionTypes:   make(map[int64]entities.ActionType),
		snapshots:     make(map[string][]entities.RankedTeam),
		failBiasTeams: make(map[int64]bool),
	}
}

// Fixture setters.

func (s *Store) SetCity(city entities.City) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cities[city.CityID] = city
}

func (s *Store) SetTeam(team entities.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[team.TeamID] = team
	if _, ok := s.cities[team.CityID]; !ok {
		s.cities[team.CityID] = entities.City{CityID: team.CityID}
	}
}

func (s *Store) SetUser(user ports.UserProjection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.UserID] = user
}

func (s *Store) SetFeedItem(item entities.FeedItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedItems[item.FeedItemID] = item
}

func (s *Store) SetActionType(actionType entities.ActionType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actionTypes[actionType.TypeID] = actionType
}

func (s *Store) SetBias(userID int64, teamID int64, bias float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.biases[biasKey{userID: userID, teamID: teamID}] = bias
}

func (s *Store) AddVote(userID int64, feedItemID int64, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = append(s.votes, entities.Vote{
		VoteID:     int64(len(s.votes) + 1),
		UserID:     userID,
		FeedItemID: feedItemID,
		Value:      value,
		CreatedAt:  s.now,
	})
}

// Test hooks.

// FailBiasUpsertForTeam makes upserts for the team fail as if the team
// row were deleted mid-batch.
func (s *Store) FailBiasUpsertForTeam(teamID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBiasTeams[teamID] = true
}

// FailNextInsertAction makes the next InsertAction fail, exercising the
// cooldown rollback path.
func (s *Store) FailNextInsertAction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInsertAction = true
}

// SetNow pins the store clock; Advance moves it forward.
func (s *Store) SetNow(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now.UTC()
}

func (s *Store) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

// SnapshotPuts counts PutSnapshot calls, letting tests observe whether a
// refresh recomputed anything.
func (s *Store) SnapshotPuts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotPuts
}

// Bias returns the stored coefficient for assertions.
func (s *Store) Bias(userID int64, teamID int64) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bias, ok := s.biases[biasKey{userID: userID, teamID: teamID}]
	return bias, ok
}

func (s *Store) BiasRowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.biases)
}

func (s *Store) Actions() []entities.Action {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Action(nil), s.actions...)
}

func (s *Store) Votes() []entities.Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]entities.Vote(nil), s.votes...)
}

// ports.RankingRepository

func (s *Store) ListTeams(_ context.Context, cityID *int64) ([]entities.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teams := make([]entities.Team, 0, len(s.teams))
	for _, team := range s.teams {
		if cityID != nil && team.CityID != *cityID {
			continue
		}
		teams = append(teams, team)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].TeamID < teams[j].TeamID })
	return teams, nil
}

func (s *Store) ListCityIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.cities))
	for id := range s.cities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) ActionPointsByTeam(_ context.Context) (map[int64]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points := make(map[int64]decimal.Decimal)
	for _, action := range s.actions {
		user, ok := s.users[action.UserID]
		if !ok || user.Banned {
			continue
		}
		actionType, ok := s.actionTypes[action.TypeID]
		if !ok {
			continue
		}
		points[action.TeamID] = points[action.TeamID].Add(actionType.Value)
	}
	return points, nil
}

func (s *Store) ListVoteAggregates(_ context.Context) ([]ports.VoteAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	aggregates := make([]ports.VoteAggregate, 0, len(s.votes))
	for _, vote := range s.votes {
		item, ok := s.feedItems[vote.FeedItemID]
		if !ok || item.Hidden {
			continue
		}
		author, ok := s.users[item.UserID]
		if !ok || author.Banned {
			continue
		}
		voter, ok := s.users[vote.UserID]
		if !ok || voter.Banned {
			continue
		}
		aggregate := ports.VoteAggregate{
			FeedItemID: vote.FeedItemID,
			TeamID:     item.TeamID,
			Value:      vote.Value,
		}
		if bias, ok := s.biases[biasKey{userID: vote.UserID, teamID: item.TeamID}]; ok {
			aggregate.Bias = bias
			aggregate.HasBias = true
		}
		aggregates = append(aggregates, aggregate)
	}
	return aggregates, nil
}

// ports.BiasRepository

func (s *Store) CountVotes(_ context.Context, userID int64, teamID int64) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var up, down int64
	for _, vote := range s.votes {
		if vote.UserID != userID {
			continue
		}
		item, ok := s.feedItems[vote.FeedItemID]
		if !ok || item.Hidden || item.TeamID != teamID {
			continue
		}
		author, ok := s.users[item.UserID]
		if !ok || author.Banned {
			continue
		}
		if vote.Value > 0 {
			up++
		} else if vote.Value < 0 {
			down++
		}
	}
	return up, down, nil
}

func (s *Store) UpsertBias(_ context.Context, bias entities.VoterBias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failBiasTeams[bias.TeamID] {
		return domainerrors.ErrTeamNotFound
	}
	s.biases[biasKey{userID: bias.UserID, teamID: bias.TeamID}] = bias.Bias
	return nil
}

func (s *Store) ListVoterTeamPairs(_ context.Context) ([]ports.VoterTeamPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[biasKey]bool)
	pairs := make([]ports.VoterTeamPair, 0)
	for _, vote := range s.votes {
		item, ok := s.feedItems[vote.FeedItemID]
		if !ok {
			continue
		}
		key := biasKey{userID: vote.UserID, teamID: item.TeamID}
		if seen[key] {
			continue
		}
		seen[key] = true
		pairs = append(pairs, ports.VoterTeamPair{UserID: key.userID, TeamID: key.teamID})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].UserID == pairs[j].UserID {
			return pairs[i].TeamID < pairs[j].TeamID
		}
		return pairs[i].UserID < pairs[j].UserID
	})
	return pairs, nil
}

// ports.EngagementRepository

func (s *Store) GetUser(_ context.Context, userID int64) (ports.UserProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return ports.UserProjection{}, domainerrors.ErrUserNotFound
	}
	return user, nil
}

func (s *Store) GetFeedItemByUUID(_ context.Context, itemUUID string) (entities.FeedItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, item := range s.feedItems {
		if item.UUID == itemUUID {
			return item, nil
		}
	}
	return entities.FeedItem{}, domainerrors.ErrFeedItemNotFound
}

func (s *Store) InsertVote(_ context.Context, vote entities.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.votes {
		if existing.UserID == vote.UserID && existing.FeedItemID == vote.FeedItemID {
			return domainerrors.ErrAlreadyVoted
		}
	}
	vote.VoteID = int64(len(s.votes) + 1)
	s.votes = append(s.votes, vote)
	return nil
}

func (s *Store) InsertAction(_ context.Context, action entities.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsertAction {
		s.failInsertAction = false
		return errors.New("action insert failed")
	}
	s.actions = append(s.actions, action)
	return nil
}

func (s *Store) ListActionTypes(_ context.Context) ([]entities.ActionType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]entities.ActionType, 0, len(s.actionTypes))
	for _, actionType := range s.actionTypes {
		types = append(types, actionType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].TypeID < types[j].TypeID })
	return types, nil
}

// ports.RankingStore

func (s *Store) PutSnapshot(_ context.Context, scope string, teams []entities.RankedTeam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[scope] = append([]entities.RankedTeam(nil), teams...)
	s.snapshotPuts++
	return nil
}

func (s *Store) GetSnapshot(_ context.Context, scope string) ([]entities.RankedTeam, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teams, ok := s.snapshots[scope]
	if !ok {
		return nil, false, nil
	}
	return append([]entities.RankedTeam(nil), teams...), true, nil
}

func (s *Store) IsStale(_ context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.freshUntil.IsZero() || !s.now.Before(s.freshUntil), nil
}

func (s *Store) MarkFresh(_ context.Context, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshUntil = s.now.Add(ttl)
	return nil
}

func (s *Store) MarkStale(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.freshUntil = time.Time{}
	return nil
}

func (s *Store) TryBeginUpdate(_ context.Context, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.updatingUntil.IsZero() && s.now.Before(s.updatingUntil) {
		return false, nil
	}
	s.updatingUntil = s.now.Add(ttl)
	return true, nil
}

func (s *Store) EndUpdate(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatingUntil = time.Time{}
	return nil
}

// ports.Clock / ports.IDGenerator

func (s *Store) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.RankingRepository = (*Store)(nil)
var _ ports.BiasRepository = (*Store)(nil)
var _ ports.EngagementRepository = (*Store)(nil)
var _ ports.RankingStore = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
