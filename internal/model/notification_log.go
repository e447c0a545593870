package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationStatus is the outcome of one delivery attempt.
type NotificationStatus string

const (
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusSkipped NotificationStatus = "skipped"
)

// NotificationLog records a delivery attempt. Every attempt is logged
// regardless of outcome; destinations are stored masked.
type NotificationLog struct {
	ID           uuid.UUID          `json:"id" gorm:"type:char(36);primaryKey" swaggertype:"string"`
	UserID       string             `json:"userId,omitempty" gorm:"type:varchar(24);index"`
	Channel      string             `json:"channel" gorm:"type:varchar(20);not null;index"`
	Kind         string             `json:"kind" gorm:"type:varchar(40);not null"`
	Destination  string             `json:"destination" gorm:"type:varchar(255)"`
	Status       NotificationStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	ErrorMessage string             `json:"errorMessage,omitempty" gorm:"type:text"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// BeforeCreate sets UUID before creating the record.
func (nl *NotificationLog) BeforeCreate(tx *gorm.DB) error {
	if nl.ID == uuid.Nil {
		nl.ID = uuid.New()
	}
	return nil
}
