package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Metal partitions the work per store. Exactly two categories exist.
type Metal string

const (
	MetalZilver Metal = "ZILVER"
	MetalStaal  Metal = "STAAL"
)

// Metals lists the categories in their fixed display order: ZILVER always
// precedes STAAL.
var Metals = []Metal{MetalZilver, MetalStaal}

// Valid reports whether m is one of the two known categories.
func (m Metal) Valid() bool { return m == MetalZilver || m == MetalStaal }

// Status is the progress of one picking line. No transition order is
// enforced; any value may be set from any other.
type Status string

const (
	StatusPending    Status = "TE_DOEN"
	StatusInProgress Status = "BEZIG"
	StatusDone       Status = "KLAAR"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusDone
}

// Line is one unit of picking work: a (run, store, metal) triple with an
// optional picker name and a status. Exactly one line exists per required
// (run, store, metal) pair, enforced by the composite unique index.
type Line struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	RunID     string    `gorm:"size:36;not null;uniqueIndex:idx_line_key,priority:1;index" json:"run_id"`
	StoreID   string    `gorm:"size:36;not null;uniqueIndex:idx_line_key,priority:2" json:"store_id"`
	Metal     Metal     `gorm:"size:16;not null;uniqueIndex:idx_line_key,priority:3" json:"metal"`
	Picker    *string   `gorm:"size:128" json:"picker"`
	Status    Status    `gorm:"size:16;not null;default:TE_DOEN" json:"status"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`

	Run   Run   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Store Store `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Line) TableName() string { return "picking_lines" }

func (l *Line) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
