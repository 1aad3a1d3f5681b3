package models

import (
	"time"

	"gorm.io/datatypes"
)

// MissionType groups missions for achievements and counters.
type MissionType string

const (
	MissionHero     MissionType = "hero"
	MissionCalm     MissionType = "calm"
	MissionScripts  MissionType = "scripts"
	MissionSelfcare MissionType = "selfcare"
	MissionSupport  MissionType = "support"
	MissionSOSCard  MissionType = "sos_card"
	MissionRoleplay MissionType = "roleplay"
	MissionRiskMap  MissionType = "risk_map"
)

// MissionTypes lists every valid mission type.
var MissionTypes = []MissionType{
	MissionHero, MissionCalm, MissionScripts, MissionSelfcare,
	MissionSupport, MissionSOSCard, MissionRoleplay, MissionRiskMap,
}

// Mission is catalog data, never stored.
type Mission struct {
	ID        string      `json:"id"`
	Type      MissionType `json:"type"`
	Title     string      `json:"title"`
	BaseXP    int         `json:"base_xp"`
	IsPremium bool        `json:"is_premium"`
}

// DayMissions is one weekday of the schedule.
type DayMissions struct {
	Required []Mission `json:"required_missions"`
	Bonus    []Mission `json:"bonus_missions"`
}

// MissionCompletion is an append-only ledger fact.
// (user_id, mission_id, mission_date) is unique: at most one completion per mission per day.
type MissionCompletion struct {
	RowID
	UserID      string         `gorm:"uniqueIndex:idx_completion_user_mission_day;not null" json:"user_id"`
	MissionID   string         `gorm:"uniqueIndex:idx_completion_user_mission_day;type:varchar(64);not null" json:"mission_id"`
	MissionDate string         `gorm:"uniqueIndex:idx_completion_user_mission_day;type:varchar(10);not null;index" json:"mission_date"`
	MissionType MissionType    `gorm:"type:varchar(16);not null;index" json:"mission_type"`
	BaseXP      int            `json:"base_xp" gorm:"not null"`
	XPEarned    int64          `json:"xp_earned" gorm:"not null"` // post-multiplier
	Multiplier  float64        `json:"multiplier" gorm:"not null;default:1"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// DailyBonus records the perfect-day bonus; one per user per day.
type DailyBonus struct {
	RowID
	UserID    string    `gorm:"uniqueIndex:idx_bonus_user_day;not null" json:"user_id"`
	BonusDate string    `gorm:"uniqueIndex:idx_bonus_user_day;type:varchar(10);not null" json:"bonus_date"`
	XPEarned  int64     `json:"xp_earned" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
