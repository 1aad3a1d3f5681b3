package models

import (
	"time"
)

// RequirementStreak is the requirement type matched against the current streak
// instead of a mission-type counter.
const RequirementStreak = "streak"

// Requirement: Type is a MissionType value or RequirementStreak.
type Requirement struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// Achievement is static config.
type Achievement struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Rarity      string      `json:"rarity"` // common, rare, epic, legendary
	Requirement Requirement `json:"requirement"`
}

// UserAchievement: granted instance, once per user.
type UserAchievement struct {
	RowID
	UserID        string    `gorm:"uniqueIndex:idx_user_achievement;not null" json:"user_id"`
	AchievementID string    `gorm:"uniqueIndex:idx_user_achievement;type:varchar(64);not null" json:"achievement_id"`
	TokensAwarded int64     `json:"tokens_awarded" gorm:"not null;default:0"`
	AwardedAt     time.Time `json:"awarded_at" gorm:"autoCreateTime"`
}

// Achievements is the fixed rule table.
var Achievements = []Achievement{
	{ID: "first_hero", Name: "First Step", Description: "Finished your first hero mission", Rarity: "common",
		Requirement: Requirement{Type: string(MissionHero), Count: 1}},
	{ID: "calm_5", Name: "Steady Breath", Description: "Completed 5 calm missions", Rarity: "common",
		Requirement: Requirement{Type: string(MissionCalm), Count: 5}},
	{ID: "scripts_10", Name: "Wordsmith", Description: "Practised 10 conversation scripts", Rarity: "rare",
		Requirement: Requirement{Type: string(MissionScripts), Count: 10}},
	{ID: "selfcare_10", Name: "Kind to Yourself", Description: "Completed 10 self-care missions", Rarity: "rare",
		Requirement: Requirement{Type: string(MissionSelfcare), Count: 10}},
	{ID: "support_3", Name: "Reaching Out", Description: "Reached out for support 3 times", Rarity: "common",
		Requirement: Requirement{Type: string(MissionSupport), Count: 3}},
	{ID: "sos_card_1", Name: "Prepared", Description: "Built your first SOS card", Rarity: "common",
		Requirement: Requirement{Type: string(MissionSOSCard), Count: 1}},
	{ID: "roleplay_5", Name: "Rehearsed", Description: "Finished 5 roleplay sessions", Rarity: "rare",
		Requirement: Requirement{Type: string(MissionRoleplay), Count: 5}},
	{ID: "risk_map_3", Name: "Cartographer", Description: "Mapped your risks 3 times", Rarity: "rare",
		Requirement: Requirement{Type: string(MissionRiskMap), Count: 3}},
	{ID: "streak_3", Name: "Warming Up", Description: "Checked in 3 days in a row", Rarity: "common",
		Requirement: Requirement{Type: RequirementStreak, Count: 3}},
	{ID: "streak_7", Name: "One Week Strong", Description: "Checked in 7 days in a row", Rarity: "rare",
		Requirement: Requirement{Type: RequirementStreak, Count: 7}},
	{ID: "streak_21", Name: "Habit Formed", Description: "Checked in 21 days in a row", Rarity: "epic",
		Requirement: Requirement{Type: RequirementStreak, Count: 21}},
	{ID: "streak_60", Name: "Unshakeable", Description: "Checked in 60 days in a row", Rarity: "legendary",
		Requirement: Requirement{Type: RequirementStreak, Count: 60}},
}
