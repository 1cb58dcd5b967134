package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"festrank/contexts/event-engagement/ranking-engine/domain/entities"
	domainerrors "festrank/contexts/event-engagement/ranking-engine/domain/errors"
	"festrank/contexts/event-engagement/ranking-engine/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) ListTeams(ctx context.Context, cityID *int64) ([]entities.Team, error) {
	tx := r.db.WithContext(ctx).Model(&teamModel{})
	if cityID != nil {
		tx = tx.Where("city_id = ?", *cityID)
	}
	var rows []teamModel
	if err := tx.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("ranking_repo_list_teams_failed", err)
	}
	teams := make([]entities.Team, 0, len(rows))
	for _, row := range rows {
		teams = append(teams, row.toEntity())
	}
	return teams, nil
}

func (r *Repository) ListCityIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&cityModel{}).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, r.logError("ranking_repo_list_city_ids_failed", err)
	}
	return ids, nil
}

// ActionPointsByTeam sums action-type point values per team over actions
// by non-banned users.
func (r *Repository) ActionPointsByTeam(ctx context.Context) (map[int64]decimal.Decimal, error) {
	type pointsRow struct {
		TeamID int64           `gorm:"column:team_id"`
		Points decimal.Decimal `gorm:"column:points"`
	}
	var rows []pointsRow
	err := r.db.WithContext(ctx).
		Table("actions AS a").
		Select("a.team_id AS team_id, SUM(at.value) AS points").
		Joins("JOIN action_types AS at ON at.id = a.type_id").
		Joins("JOIN users AS u ON u.id = a.user_id").
		Where("u.is_banned = ?", false).
		Group("a.team_id").
		Scan(&rows).
		Error
	if err != nil {
		return nil, r.logError("ranking_repo_action_points_failed", err)
	}
	points := make(map[int64]decimal.Decimal, len(rows))
	for _, row := range rows {
		points[row.TeamID] = row.Points
	}
	return points, nil
}

// ListVoteAggregates returns every eligible vote joined with the author
// team and the voter's persisted bias toward it. Hidden items and votes
// involving banned users are filtered here so score aggregation stays
// pure.
func (r *Repository) ListVoteAggregates(ctx context.Context) ([]ports.VoteAggregate, error) {
	type aggregateRow struct {
		FeedItemID int64    `gorm:"column:feed_item_id"`
		TeamID     int64    `gorm:"column:team_id"`
		Value      int      `gorm:"column:value"`
		Bias       *float64 `gorm:"column:bias"`
	}
	var rows []aggregateRow
	err := r.db.WithContext(ctx).
		Table("votes AS v").
		Select("v.feed_item_id AS feed_item_id, f.team_id AS team_id, v.value AS value, vb.bias AS bias").
		Joins("JOIN feed_items AS f ON f.id = v.feed_item_id").
		Joins("JOIN users AS author ON author.id = f.user_id").
		Joins("JOIN users AS voter ON voter.id = v.user_id").
		Joins("LEFT JOIN voter_biases AS vb ON vb.user_id = v.user_id AND vb.team_id = f.team_id").
		Where("f.is_hidden = ?", false).
		Where("author.is_banned = ?", false).
		Where("voter.is_banned = ?", false).
		Scan(&rows).
		Error
	if err != nil {
		return nil, r.logError("ranking_repo_list_vote_aggregates_failed", err)
	}
	aggregates := make([]ports.VoteAggregate, 0, len(rows))
	for _, row := range rows {
		aggregate := ports.VoteAggregate{
			FeedItemID: row.FeedItemID,
			TeamID:     row.TeamID,
			Value:      row.Value,
		}
		if row.Bias != nil {
			aggregate.Bias = *row.Bias
			aggregate.HasBias = true
		}
		aggregates = append(aggregates, aggregate)
	}
	return aggregates, nil
}

// CountVotes counts the voter's up/down votes on visible feed items
// authored by non-banned members of the team.
func (r *Repository) CountVotes(ctx context.Context, userID int64, teamID int64) (int64, int64, error) {
	type countRow struct {
		Up   int64 `gorm:"column:up"`
		Down int64 `gorm:"column:down"`
	}
	var row countRow
	err := r.db.WithContext(ctx).
		Table("votes AS v").
		Select("COUNT(CASE WHEN v.value = 1 THEN 1 END) AS up, COUNT(CASE WHEN v.value = -1 THEN 1 END) AS down").
		Joins("JOIN feed_items AS f ON f.id = v.feed_item_id").
		Joins("JOIN users AS author ON author.id = f.user_id").
		Where("v.user_id = ?", userID).
		Where("f.team_id = ?", teamID).
		Where("f.is_hidden = ?", false).
		Where("author.is_banned = ?", false).
		Scan(&row).
		Error
	if err != nil {
		return 0, 0, r.logError("ranking_repo_count_votes_failed", err,
			"user_id", userID,
			"team_id", teamID,
		)
	}
	return row.Up, row.Down, nil
}

// UpsertBias writes the (user, team) bias in a single conditional
// statement. Concurrent recomputation of the same pair is resolved by the
// unique key, never by application-level retries.
func (r *Repository) UpsertBias(ctx context.Context, bias entities.VoterBias) error {
	row := voterBiasModel{
		UserID: bias.UserID,
		TeamID: bias.TeamID,
		Bias:   bias.Bias,
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "team_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"bias": row.Bias,
		}),
	}).Create(&row)
	if create.Error != nil {
		if isForeignKeyViolation(create.Error) {
			return domainerrors.ErrTeamNotFound
		}
		return r.logError("ranking_repo_upsert_bias_failed", create.Error,
			"user_id", bias.UserID,
			"team_id", bias.TeamID,
		)
	}
	return nil
}

func (r *Repository) ListVoterTeamPairs(ctx context.Context) ([]ports.VoterTeamPair, error) {
	type pairRow struct {
		UserID int64 `gorm:"column:user_id"`
		TeamID int64 `gorm:"column:team_id"`
	}
	var rows []pairRow
	err := r.db.WithContext(ctx).
		Table("votes AS v").
		Select("DISTINCT v.user_id AS user_id, f.team_id AS team_id").
		Joins("JOIN feed_items AS f ON f.id = v.feed_item_id").
		Order("user_id ASC").
		Scan(&rows).
		Error
	if err != nil {
		return nil, r.logError("ranking_repo_list_voter_team_pairs_failed", err)
	}
	pairs := make([]ports.VoterTeamPair, 0, len(rows))
	for _, row := range rows {
		pairs = append(pairs, ports.VoterTeamPair{
			UserID: row.UserID,
			TeamID: row.TeamID,
		})
	}
	return pairs, nil
}

func (r *Repository) GetUser(ctx context.Context, userID int64) (ports.UserProjection, error) {
	var row userModel
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.UserProjection{}, domainerrors.ErrUserNotFound
		}
		return ports.UserProjection{}, r.logError("ranking_repo_get_user_failed", err, "user_id", userID)
	}
	return ports.UserProjection{
		UserID: row.ID,
		TeamID: row.TeamID,
		Banned: row.IsBanned,
	}, nil
}

func (r *Repository) GetFeedItemByUUID(ctx context.Context, itemUUID string) (entities.FeedItem, error) {
	var row feedItemModel
	err := r.db.WithContext(ctx).
		Where("uuid = ?", itemUUID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.FeedItem{}, domainerrors.ErrFeedItemNotFound
		}
		return entities.FeedItem{}, r.logError("ranking_repo_get_feed_item_failed", err, "feed_item_uuid", itemUUID)
	}
	return row.toEntity(), nil
}

// InsertVote inserts the vote unless the (user, feed item) pair already
// voted. Votes are immutable, so a duplicate is a conflict, not an
// update.
func (r *Repository) InsertVote(ctx context.Context, vote entities.Vote) error {
	row := voteModel{
		UserID:     vote.UserID,
		FeedItemID: vote.FeedItemID,
		Value:      vote.Value,
		CreatedAt:  vote.CreatedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "feed_item_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		if isUniqueViolation(create.Error) {
			return domainerrors.ErrAlreadyVoted
		}
		return r.logError("ranking_repo_insert_vote_failed", create.Error,
			"user_id", vote.UserID,
			"feed_item_id", vote.FeedItemID,
		)
	}
	if create.RowsAffected == 0 {
		return domainerrors.ErrAlreadyVoted
	}
	return nil
}

func (r *Repository) InsertAction(ctx context.Context, action entities.Action) error {
	row := actionModel{
		ID:        action.ActionID,
		UserID:    action.UserID,
		TeamID:    action.TeamID,
		TypeID:    action.TypeID,
		CityID:    action.CityID,
		CreatedAt: action.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("ranking_repo_insert_action_failed", err,
			"action_id", action.ActionID,
			"user_id", action.UserID,
		)
	}
	return nil
}

func (r *Repository) ListActionTypes(ctx context.Context) ([]entities.ActionType, error) {
	var rows []actionTypeModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("ranking_repo_list_action_types_failed", err)
	}
	types := make([]entities.ActionType, 0, len(rows))
	for _, row := range rows {
		types = append(types, row.toEntity())
	}
	return types, nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "event-engagement/ranking-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ranking repository operation failed", fields...)
	return err
}

type teamModel struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	Name      string `gorm:"column:name"`
	CityID    int64  `gorm:"column:city_id"`
	ImagePath string `gorm:"column:image_path"`
}

func (teamModel) TableName() string {
	return "teams"
}

func (m teamModel) toEntity() entities.Team {
	return entities.Team{
		TeamID:    m.ID,
		Name:      m.Name,
		CityID:    m.CityID,
		ImagePath: m.ImagePath,
	}
}

type cityModel struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
}

func (cityModel) TableName() string {
	return "cities"
}

type userModel struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	UUID     string `gorm:"column:uuid"`
	Name     string `gorm:"column:name"`
	TeamID   int64  `gorm:"column:team_id"`
	IsBanned bool   `gorm:"column:is_banned"`
}

func (userModel) TableName() string {
	return "users"
}

type feedItemModel struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	UUID     string `gorm:"column:uuid"`
	UserID   int64  `gorm:"column:user_id"`
	TeamID   int64  `gorm:"column:team_id"`
	IsHidden bool   `gorm:"column:is_hidden"`
}

func (feedItemModel) TableName() string {
	return "feed_items"
}

func (m feedItemModel) toEntity() entities.FeedItem {
	return entities.FeedItem{
		FeedItemID: m.ID,
		UUID:       m.UUID,
		UserID:     m.UserID,
		TeamID:     m.TeamID,
		Hidden:     m.IsHidden,
	}
}

type voteModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	UserID     int64     `gorm:"column:user_id"`
	FeedItemID int64     `gorm:"column:feed_item_id"`
	Value      int       `gorm:"column:value"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

type voterBiasModel struct {
	ID     int64   `gorm:"column:id;primaryKey"`
	UserID int64   `gorm:"column:user_id"`
	TeamID int64   `gorm:"column:team_id"`
	Bias   float64 `gorm:"column:bias"`
}

func (voterBiasModel) TableName() string {
	return "voter_biases"
}

type actionTypeModel struct {
	ID       int64           `gorm:"column:id;primaryKey"`
	Code     string          `gorm:"column:code"`
	Value    decimal.Decimal `gorm:"column:value"`
	Cooldown int64           `gorm:"column:cooldown"`
}

func (actionTypeModel) TableName() string {
	return "action_types"
}

func (m actionTypeModel) toEntity() entities.ActionType {
	return entities.ActionType{
		TypeID:     m.ID,
		Code:       m.Code,
		Value:      m.Value,
		CooldownMS: m.Cooldown,
	}
}

type actionModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UserID    int64     `gorm:"column:user_id"`
	TeamID    int64     `gorm:"column:team_id"`
	TypeID    int64     `gorm:"column:type_id"`
	CityID    int64     `gorm:"column:city_id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (actionModel) TableName() string {
	return "actions"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

var _ ports.RankingRepository = (*Repository)(nil)
var _ ports.BiasRepository = (*Repository)(nil)
var _ ports.EngagementRepository = (*Repository)(nil)
