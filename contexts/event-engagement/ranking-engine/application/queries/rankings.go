package queries

import (
	"context"
	"math"
	"sort"

	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	"festrank/contexts/event-engagement/ranking-engine/domain/scoring"
	"festrank/contexts/event-engagement/ranking-engine/ports"
)

// RankingQuery computes per-team scores from committed relational data.
// It is stateless and never mutates store state; callers that need low
// read latency go through CachedRankings instead.
type RankingQuery struct {
	Repo ports.RankingRepository
}

// Compute aggregates action points and bias-weighted vote scores per team.
// cityID restricts the ranking to one city; nil computes the nationwide
// ranking. Entries are ordered by score descending, ties broken by team id
// ascending.
func (uc RankingQuery) Compute(ctx context.Context, cityID *int64) ([]entities.RankedTeam, error) {
	teams, err := uc.Repo.ListTeams(ctx, cityID)
	if err != nil {
		return nil, err
	}
	actionPoints, err := uc.Repo.ActionPointsByTeam(ctx)
	if err != nil {
		return nil, err
	}
	voteScores, err := uc.voteScoresByTeam(ctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]entities.RankedTeam, 0, len(teams))
	for _, team := range teams {
		total := voteScores[team.TeamID]
		if points, ok := actionPoints[team.TeamID]; ok {
			total += points.InexactFloat64()
		}
		ranked = append(ranked, entities.RankedTeam{
			TeamID:    team.TeamID,
			Name:      team.Name,
			Score:     int64(math.Trunc(total)),
			ImagePath: team.ImagePath,
			CityID:    team.CityID,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score == ranked[j].Score {
			return ranked[i].TeamID < ranked[j].TeamID
		}
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}

// voteScoresByTeam folds every eligible vote into per-item weighted
// masses, then sums each item's Wilson contribution into its author team.
// Votes without a persisted bias row contribute no mass.
func (uc RankingQuery) voteScoresByTeam(ctx context.Context) (map[int64]float64, error) {
	rows, err := uc.Repo.ListVoteAggregates(ctx)
	if err != nil {
		return nil, err
	}

	type itemMass struct {
		teamID int64
		pos    float64
		neg    float64
	}
	masses := make(map[int64]*itemMass)
	for _, row := range rows {
		mass, ok := masses[row.FeedItemID]
		if !ok {
			mass = &itemMass{teamID: row.TeamID}
			masses[row.FeedItemID] = mass
		}
		if !row.HasBias {
			continue
		}
		switch {
		case row.Value > 0:
			mass.pos += 1 - row.Bias
		case row.Value < 0:
			mass.neg += row.Bias
		}
	}

	scores := make(map[int64]float64, len(masses))
	for _, mass := range masses {
		scores[mass.teamID] += scoring.ItemScore(mass.pos, mass.neg)
	}
	return scores, nil
}
