package models

import "time"

// StreakState tracks consecutive check-in days for a user.
type StreakState struct {
	RowID
	UserID          string `gorm:"uniqueIndex;not null" json:"user_id"`
	CurrentStreak   int    `json:"current_streak" gorm:"not null;default:0"`
	LongestStreak   int    `json:"longest_streak" gorm:"not null;default:0"`
	LastCheckInDate string `json:"last_check_in_date,omitempty" gorm:"type:varchar(10)"` // "" = never

	Timestamps
}

// CheckIn is an append-only mood check-in; it is what moves the streak.
type CheckIn struct {
	RowID
	UserID      string    `gorm:"index:idx_checkins_user_day;not null" json:"user_id"`
	CheckInDate string    `gorm:"index:idx_checkins_user_day;type:varchar(10);not null" json:"check_in_date"`
	Mood        int       `json:"mood" gorm:"not null;check:mood >= 1 AND mood <= 5"`
	Note        string    `json:"note,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}
