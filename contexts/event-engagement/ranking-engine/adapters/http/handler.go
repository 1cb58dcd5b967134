package httpadapter

import (
	"context"
	"log/slog"

	"festrank/contexts/event-engagement/ranking-engine/application/commands"
	"festrank/contexts/event-engagement/ranking-engine/application/queries"
	httptransport "festrank/contexts/event-engagement/ranking-engine/transport/http"
)

type Handler struct {
	Rankings *queries.CachedRankings
	Votes    commands.VoteUseCase
	Actions  commands.ActionUseCase
	Logger   *slog.Logger
}

func (h Handler) GetTeamsHandler(ctx context.Context, cityID *int64) (httptransport.TeamRankingResponse, error) {
	teams, err := h.Rankings.GetTeams(ctx, cityID)
	if err != nil {
		return httptransport.TeamRankingResponse{}, err
	}
	items := make([]httptransport.TeamRankingItem, 0, len(teams))
	for _, team := range teams {
		items = append(items, httptransport.TeamRankingItem{
			TeamID:    team.TeamID,
			Name:      team.Name,
			Score:     team.Score,
			ImagePath: team.ImagePath,
			CityID:    team.CityID,
		})
	}
	return httptransport.TeamRankingResponse{Teams: items}, nil
}

func (h Handler) CastVoteHandler(ctx context.Context, userID int64, req httptransport.CastVoteRequest) error {
	_, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		UserID:       userID,
		FeedItemUUID: req.FeedItemID,
		Value:        req.Value,
	})
	return err
}

func (h Handler) PerformActionHandler(
	ctx context.Context,
	clientID string,
	userID int64,
	req httptransport.PerformActionRequest,
) (httptransport.PerformActionResponse, error) {
	action, err := h.Actions.PerformAction(ctx, commands.PerformActionCommand{
		ClientID: clientID,
		UserID:   userID,
		Code:     req.Type,
		CityID:   req.CityID,
	})
	if err != nil {
		return httptransport.PerformActionResponse{}, err
	}
	return httptransport.PerformActionResponse{ActionID: action.ActionID}, nil
}
