// models/subscription_mirror.go
package models

import (
	"time"
)

// SubscriptionMirror mirrors the identity provider's premium flag.
// Populated by the subscription sync worker; read by background jobs that
// have no request headers to look at.
type SubscriptionMirror struct {
	RowID
	UserID    string     `gorm:"uniqueIndex;not null" json:"user_id"`
	IsPremium bool       `gorm:"not null;default:false" json:"is_premium"`
	Plan      string     `gorm:"type:varchar(32)" json:"plan,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Timezone  string     `gorm:"type:varchar(64)" json:"timezone,omitempty"`
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Active reports whether premium applies at t.
func (s SubscriptionMirror) Active(t time.Time) bool {
	return s.IsPremium && (s.ExpiresAt == nil || s.ExpiresAt.After(t))
}
