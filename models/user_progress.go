package models

import (
	"time"
)

// UserProgress is the per-user aggregate for the daily challenge (one row per user).
// TotalXP only grows; wager losses come out of PowerTokens.
type UserProgress struct {
	RowID
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // identity provider id

	// Core progression
	TotalXP      int64  `json:"total_xp" gorm:"not null;default:0"`
	CurrentLevel string `json:"current_level" gorm:"type:varchar(32);not null;default:'explorer'"`

	// Spendable balances
	PowerTokens            int64 `json:"power_tokens" gorm:"not null;default:0"`
	StreakRescuesAvailable int   `json:"streak_rescues_available" gorm:"not null;default:0"`

	// Shield: one activation per ISO week, armed until it bridges a missed day
	ShieldUsedAt *string `json:"shield_used_at,omitempty" gorm:"type:varchar(10)"`
	ShieldArmed  bool    `json:"shield_armed" gorm:"not null;default:false"`

	// Wager: seeds at risk until the streak reaches WagerTargetStreak (won) or resets (lost)
	WagerActive       bool    `json:"wager_active" gorm:"not null;default:false"`
	WagerAmount       int64   `json:"wager_amount" gorm:"not null;default:0"`
	WagerTargetStreak int     `json:"wager_target_streak" gorm:"not null;default:0"`
	WagerPlacedAt     *string `json:"wager_placed_at,omitempty" gorm:"type:varchar(10)"`

	IsPremium bool   `json:"is_premium" gorm:"not null;default:false"`
	Timezone  string `json:"timezone,omitempty" gorm:"type:varchar(64)"`

	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}
