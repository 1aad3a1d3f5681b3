package models

import (
	"time"

	"gorm.io/datatypes"
)

type LeagueTier string

const (
	TierBronze  LeagueTier = "bronze"
	TierSilver  LeagueTier = "silver"
	TierGold    LeagueTier = "gold"
	TierDiamond LeagueTier = "diamond"
)

// LeagueCapacity bounds every weekly cohort.
const LeagueCapacity = 20

// League is one weekly cohort of a tier.
type League struct {
	RowID
	Tier        LeagueTier `gorm:"type:varchar(16);not null;uniqueIndex:idx_league_cohort" json:"tier"`
	WeekStart   string     `gorm:"type:varchar(10);not null;uniqueIndex:idx_league_cohort" json:"week_start"` // Monday
	Sequence    int        `gorm:"not null;uniqueIndex:idx_league_cohort" json:"sequence"` // 1-based cohort number within tier/week
	Name        string     `gorm:"type:varchar(96);not null" json:"name"`
	MemberCount int        `gorm:"not null;default:0" json:"member_count"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`

	Members []LeagueMember `gorm:"foreignKey:LeagueID" json:"members,omitempty"`

	Timestamps
}

// LeagueMember: (user_id, week_start) is unique, so a user is in one league per week.
type LeagueMember struct {
	RowID
	LeagueID         string    `gorm:"type:varchar(36);not null;index" json:"league_id"`
	UserID           string    `gorm:"not null;uniqueIndex:idx_member_user_week" json:"user_id"`
	WeekStart        string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_member_user_week" json:"week_start"`
	Position         int       `gorm:"not null" json:"position"` // join order inside the league, for stable ties
	XPEarnedThisWeek int64     `gorm:"not null;default:0" json:"xp_earned_this_week"`
	JoinedAt         time.Time `gorm:"autoCreateTime" json:"joined_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ZoneOutcome string

const (
	ZonePromotion ZoneOutcome = "promotion"
	ZoneStay      ZoneOutcome = "stay"
	ZoneDemotion  ZoneOutcome = "demotion"
)

// LeagueRankSnapshot stores a user's final standing when a week closes.
type LeagueRankSnapshot struct {
	RowID
	UserID    string         `gorm:"not null;uniqueIndex:idx_snapshot_user_week" json:"user_id"`
	WeekStart string         `gorm:"type:varchar(10);not null;uniqueIndex:idx_snapshot_user_week" json:"week_start"`
	LeagueID  string         `gorm:"type:varchar(36);not null" json:"league_id"`
	Tier      LeagueTier     `gorm:"type:varchar(16);not null" json:"tier"`
	Rank      int            `gorm:"not null" json:"rank"`
	XPEarned  int64          `gorm:"not null" json:"xp_earned"`
	Outcome   ZoneOutcome    `gorm:"type:varchar(16);not null" json:"outcome"`
	Details   datatypes.JSON `json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
