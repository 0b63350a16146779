package entity

import (
	"strings"
	"time"
)

// User is the profile document kept next to the identity provider's account.
type User struct {
	ID         string    `json:"userId"`               // Identity provider user id.
	Email      string    `json:"email"`                // Primary e-mail.
	Username   string    `json:"username"`             // Searchable handle.
	ProfilePic string    `json:"profilePic,omitempty"` // URL of the profile picture.
	CreatedAt  time.Time `json:"createdAt"`            // Timestamp of profile creation.
	UpdatedAt  time.Time `json:"updatedAt"`            // Timestamp of the last modification.
}

// DefaultUsername derives a handle from an e-mail address: the part before '@'.
func DefaultUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")

	return strings.ToLower(strings.TrimSpace(local))
}

// PushToken is the device registration used to reach a user.
type PushToken struct {
	UserID    string    `json:"userId"`             // Owner of the token.
	Token     string    `json:"token"`              // FCM registration token.
	Platform  string    `json:"platform,omitempty"` // ios, android or web.
	UpdatedAt time.Time `json:"updatedAt"`          // Last registration time.
}
