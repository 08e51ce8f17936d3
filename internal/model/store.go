package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store represents a shop location served by picking. The catalog of stores
// is owned by an upstream system; this application only reads it.
type Store struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Code      string    `gorm:"uniqueIndex;size:16;not null" json:"code"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`
}

func (Store) TableName() string { return "stores" }

func (s *Store) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
