package entities

// RankedTeam is one entry of a computed ranking snapshot.
type RankedTeam struct {
	TeamID    int64  `json:"team_id"`
	Name      string `json:"name"`
	Score     int64  `json:"score"`
	ImagePath string `json:"image_path"`
	CityID    int64  `json:"city_id"`
}
