package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscribers pick the stores they want "line klaar" notifications for.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Stores []*Store `gorm:"many2many:subscription_store_mapping;"`
}
