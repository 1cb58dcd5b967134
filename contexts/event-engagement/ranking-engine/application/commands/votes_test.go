package commands_test

import (
	"context"
	"errors"
	"testing"

	"festrank/contexts/event-engagement/ranking-engine/adapters/memory"
	"festrank/contexts/event-engagement/ranking-engine/application/commands"
	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	domainerrors "festrank/contexts/event-engagement/ranking-engine/domain/errors"
	"festrank/contexts/event-engagement/ranking-engine/ports"
)

func newVoteFixture() (*memory.Store, commands.VoteUseCase) {
	store := memory.NewStore()
	store.SetTeam(entities.Team{TeamID: 1, Name: "alpha", CityID: 1})
	store.SetUser(ports.UserProjection{UserID: 10, TeamID: 1})
	store.SetUser(ports.UserProjection{UserID: 20})
	store.SetFeedItem(entities.FeedItem{FeedItemID: 100, UUID: "item-1", UserID: 10, TeamID: 1})
	return store, commands.VoteUseCase{Repo: store, Clock: store}
}

func TestCastVoteRecordsVote(t *testing.T) {
	store, uc := newVoteFixture()
	vote, err := uc.CastVote(context.Background(), commands.CastVoteCommand{
		UserID:       20,
		FeedItemUUID: "item-1",
		Value:        entities.VoteValueUp,
	})
	if err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	if vote.FeedItemID != 100 || vote.Value != entities.VoteValueUp {
		t.Fatalf("unexpected vote %+v", vote)
	}
	if got := len(store.Votes()); got != 1 {
		t.Fatalf("expected 1 stored vote, got %d", got)
	}
}

func TestCastVoteRejectsInvalidInput(t *testing.T) {
	_, uc := newVoteFixture()
	cases := []commands.CastVoteCommand{
		{UserID: 0, FeedItemUUID: "item-1", Value: entities.VoteValueUp},
		{UserID: 20, FeedItemUUID: "  ", Value: entities.VoteValueUp},
		{UserID: 20, FeedItemUUID: "item-1", Value: 0},
		{UserID: 20, FeedItemUUID: "item-1", Value: 2},
	}
	for i, cmd := range cases {
		if _, err := uc.CastVote(context.Background(), cmd); !errors.Is(err, domainerrors.ErrInvalidVoteInput) {
			t.Fatalf("case %d: expected ErrInvalidVoteInput, got %v", i, err)
		}
	}
}

func TestCastVoteUnknownFeedItem(t *testing.T) {
	_, uc := newVoteFixture()
	_, err := uc.CastVote(context.Background(), commands.CastVoteCommand{
		UserID:       20,
		FeedItemUUID: "missing",
		Value:        entities.VoteValueDown,
	})
	if !errors.Is(err, domainerrors.ErrFeedItemNotFound) {
		t.Fatalf("expected ErrFeedItemNotFound, got %v", err)
	}
}

func TestCastVoteRejectsDuplicate(t *testing.T) {
	_, uc := newVoteFixture()
	cmd := commands.CastVoteCommand{
		UserID:       20,
		FeedItemUUID: "item-1",
		Value:        entities.VoteValueUp,
	}
	if _, err := uc.CastVote(context.Background(), cmd); err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	cmd.Value = entities.VoteValueDown
	if _, err := uc.CastVote(context.Background(), cmd); !errors.Is(err, domainerrors.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}
}
