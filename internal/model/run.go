package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run is the picking batch for one calendar date. At most one run exists per
// date; runs are created lazily on first load and never deleted.
type Run struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	RunDate   string    `gorm:"column:run_date;uniqueIndex;size:10;not null" json:"run_date"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
}

func (Run) TableName() string { return "picking_runs" }

func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
