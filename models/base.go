package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RowID gives every row a UUID generated in Go, so inserts behave the same on
// Postgres and on the sqlite databases used in tests.
type RowID struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`
}

func (r *RowID) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
