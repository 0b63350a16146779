package model

import (
	"time"
)

// UserModel mirrors the 'users' table. The id is issued by the identity provider.
type UserModel struct {
	ID         string `gorm:"type:varchar(128);primaryKey"`
	Email      string `gorm:"type:varchar(255);not null"`
	Username   string `gorm:"type:varchar(30);not null;unique"`
	ProfilePic string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName explicitly sets the table name for GORM.
func (UserModel) TableName() string {
	return "users"
}

// PushTokenModel mirrors the 'push_tokens' table: one device token per user.
type PushTokenModel struct {
	UserID    string `gorm:"type:varchar(128);primaryKey"`
	Token     string `gorm:"type:text;not null"`
	Platform  string `gorm:"type:varchar(20)"`
	UpdatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (PushTokenModel) TableName() string {
	return "push_tokens"
}
