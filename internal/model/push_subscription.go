package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscribers are alerted when an inspection is recorded as NOT_OK.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	WorkOrder string    `gorm:"size:64;index"` // empty matches every work order
	CreatedAt time.Time `gorm:"not null"`
}
