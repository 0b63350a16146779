package model

import (
	"time"
)

// ProofModel is the GORM-specific struct for the 'proofs' table, the per-habit proof subcollection.
type ProofModel struct {
	ID          string     `gorm:"type:varchar(64);primaryKey"`
	HabitID     string     `gorm:"type:varchar(64);primaryKey"`
	SubmittedBy string     `gorm:"type:varchar(128);not null"`
	Timestamp   time.Time  `gorm:"not null"`
	URL         string     `gorm:"type:text"`
	ContentType string     `gorm:"type:varchar(100)"`
	Note        string     `gorm:"type:text"`
	Status      string     `gorm:"type:varchar(20);not null"`
	ReviewedBy  string     `gorm:"type:varchar(128)"`
	ReviewedAt  *time.Time
}

// TableName explicitly sets the table name for GORM.
func (ProofModel) TableName() string {
	return "proofs"
}
