package entity

import (
	"time"
)

// Actor is the user performing an operation together with the calendar their "today" is
// computed in. The location comes from the client and is trusted as-is.
type Actor struct {
	UserID   string
	Location *time.Location
}

// NewActor builds an Actor, falling back to UTC when loc is nil.
func NewActor(userID string, loc *time.Location) Actor {
	if loc == nil {
		loc = time.UTC
	}

	return Actor{UserID: userID, Location: loc}
}

// Loc returns the actor's location, never nil.
func (a Actor) Loc() *time.Location {
	if a.Location == nil {
		return time.UTC
	}

	return a.Location
}

// Today is the actor's current calendar date.
func (a Actor) Today(now time.Time) Day {
	return DayOf(now, a.Loc())
}

// Identity is what the identity provider asserts about a verified token.
type Identity struct {
	UserID      string    // Stable user id issued by the provider.
	Email       string    // Primary e-mail, may be empty for anonymous providers.
	DisplayName string    // Optional display name.
	ExpiresAt   time.Time // Token expiry; sessions end when it passes.
}
