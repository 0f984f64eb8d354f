package model

import "time"

// PushSubscription holds a dispatcher's browser push subscription. Each
// subscription follows the violations of the drivers it is mapped to.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Drivers []*Driver `gorm:"many2many:subscription_driver_mapping;"`
}
