package entities

import "github.com/shopspring/decimal"

type Team struct {
	TeamID    int64
	Name      string
	CityID    int64
	ImagePath string
}

type City struct {
	CityID int64
	Name   string
}

// ActionType is config-like reference data: point value awarded per action
// and cooldown between executions of the same type by one client.
type ActionType struct {
	TypeID     int64
	Code       string
	Value      decimal.Decimal
	CooldownMS int64
}
