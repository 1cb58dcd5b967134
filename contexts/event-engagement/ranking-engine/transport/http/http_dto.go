package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TeamRankingItem struct {
	TeamID    int64  `json:"id"`
	Name      string `json:"name"`
	Score     int64  `json:"score"`
	ImagePath string `json:"image_path,omitempty"`
	CityID    int64  `json:"city_id"`
}

type TeamRankingResponse struct {
	Teams []TeamRankingItem `json:"teams"`
}

type CastVoteRequest struct {
	FeedItemID string `json:"feed_item_id"`
	Value      int    `json:"value"`
}

type PerformActionRequest struct {
	Type   string `json:"type"`
	CityID int64  `json:"city_id"`
}

type PerformActionResponse struct {
	ActionID string `json:"action_id"`
}
