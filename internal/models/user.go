package models

import (
	"github.com/google/uuid"
)

// User represents a chat participant. User records are owned by the channel
// store's user table and shared by reference; they are never duplicated per
// message or per channel.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Icon     string    `json:"icon,omitempty"`
}

// GetDisplayName returns the name to show in the UI
func (u *User) GetDisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.ID.String()
}
