package model

// Operating weekdays. Picking only happens Tuesday through Friday.
const (
	WeekdayMin = 2
	WeekdayMax = 5
)

// TemplateEntry maps an operating weekday to a store that requires picking
// lines on that day. Read-only from this application's perspective.
type TemplateEntry struct {
	Weekday int    `gorm:"primaryKey;autoIncrement:false" json:"weekday"`
	StoreID string `gorm:"primaryKey;size:36" json:"store_id"`

	Store Store `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (TemplateEntry) TableName() string { return "picking_templates" }
