package entities

import "time"

const (
	VoteValueUp   = 1
	VoteValueDown = -1
)

// Vote is immutable once cast. Value is +1 or -1.
type Vote struct {
	VoteID     int64
	UserID     int64
	FeedItemID int64
	Value      int
	CreatedAt  time.Time
}

// VoterBias is the per-(voter, team) trust coefficient in [0,1].
// One row per pair; overwritten on recompute.
type VoterBias struct {
	UserID int64
	TeamID int64
	Bias   float64
}

type FeedItem struct {
	FeedItemID int64
	UUID       string
	UserID     int64
	TeamID     int64
	Hidden     bool
}

type Action struct {
	ActionID  string
	UserID    int64
	TeamID    int64
	TypeID    int64
	CityID    int64
	CreatedAt time.Time
}
