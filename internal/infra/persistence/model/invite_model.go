package model

import (
	"time"
)

// InviteModel is the GORM-specific struct for the 'invites' table.
type InviteModel struct {
	ID          string    `gorm:"type:varchar(64);primaryKey"`
	HabitID     string    `gorm:"type:varchar(64);primaryKey"`
	InvitedBy   string    `gorm:"type:varchar(128);not null"`
	Invitee     string    `gorm:"type:varchar(128);not null;index"`
	Status      string    `gorm:"type:varchar(20);not null"`
	Timestamp   time.Time `gorm:"not null"`
	RespondedAt *time.Time
}

// TableName explicitly sets the table name for GORM.
func (InviteModel) TableName() string {
	return "invites"
}
