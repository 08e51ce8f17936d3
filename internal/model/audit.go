package model

import "time"

// LineAudit is a best-effort snapshot of a line mutation. Writes to this
// table must never block or roll back the line update itself.
type LineAudit struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	LineID    string    `gorm:"size:36;not null;index" json:"line_id"`
	RunID     string    `gorm:"size:36;not null" json:"run_id"`
	StoreID   string    `gorm:"size:36;not null" json:"store_id"`
	Metal     Metal     `gorm:"size:16;not null" json:"metal"`
	Picker    *string   `gorm:"size:128" json:"picker"`
	Status    Status    `gorm:"size:16;not null" json:"status"`
	ChangedBy string    `gorm:"size:128" json:"changed_by"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (LineAudit) TableName() string { return "picking_line_audit" }
