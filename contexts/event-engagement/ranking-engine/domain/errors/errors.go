package errors

import "errors"

var (
	ErrInvalidVoteInput  = errors.New("invalid vote input")
	ErrAlreadyVoted      = errors.New("vote already cast for feed item")
	ErrFeedItemNotFound  = errors.New("feed item not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrTeamNotFound      = errors.New("team not found")
	ErrUnknownActionType = errors.New("unknown action type")
	ErrActionThrottled   = errors.New("action is on cooldown")
	ErrRankingsNotCached = errors.New("ranking snapshot not cached")
)
