package models

import (
	"time"

	"fundledger/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all mutable tables. Rows are hard-deleted
// so that natural-key unique constraints (symbol, name, pairs) stay reusable.
type Base struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}
