package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "festrank/contexts/event-engagement/ranking-engine/application"
	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	domainerrors "festrank/contexts/event-engagement/ranking-engine/domain/errors"
	"festrank/contexts/event-engagement/ranking-engine/ports"
)

// CastVoteCommand is the write-model input for casting a vote on a feed
// item. Votes are immutable once cast.
type CastVoteCommand struct {
	UserID       int64
	FeedItemUUID string
	Value        int
}

// VoteUseCase handles the vote write path.
type VoteUseCase struct {
	Repo   ports.EngagementRepository
	Clock  ports.Clock
	Logger *slog.Logger
}

func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)

	if cmd.UserID <= 0 || strings.TrimSpace(cmd.FeedItemUUID) == "" {
		return entities.Vote{}, domainerrors.ErrInvalidVoteInput
	}
	if cmd.Value != entities.VoteValueUp && cmd.Value != entities.VoteValueDown {
		return entities.Vote{}, domainerrors.ErrInvalidVoteInput
	}

	item, err := uc.Repo.GetFeedItemByUUID(ctx, strings.TrimSpace(cmd.FeedItemUUID))
	if err != nil {
		return entities.Vote{}, err
	}

	vote := entities.Vote{
		UserID:     cmd.UserID,
		FeedItemID: item.FeedItemID,
		Value:      cmd.Value,
		CreatedAt:  uc.now(),
	}
	if err := uc.Repo.InsertVote(ctx, vote); err != nil {
		return entities.Vote{}, err
	}

	logger.Info("vote cast",
		"event", "engagement_vote_cast",
		"module", "event-engagement/ranking-engine",
		"layer", "application",
		"user_id", cmd.UserID,
		"feed_item_id", item.FeedItemID,
		"value", cmd.Value,
	)
	return vote, nil
}

func (uc VoteUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
