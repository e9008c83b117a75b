package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel represents a chat channel
type Channel struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Icon      string      `json:"icon,omitempty"`
	MemberIDs []uuid.UUID `json:"member_ids,omitempty"`
	CreatedAt time.Time   `json:"created_at"`

	// UnreadCount is client-side only: incremented on inbound messages to a
	// channel that is not focused in the message view, reset to zero when the
	// channel gains focus.
	UnreadCount int `json:"-"`
}

// NewChannel creates a new channel with the given name and icon
func NewChannel(name, icon string) *Channel {
	return &Channel{
		ID:        uuid.New(),
		Name:      name,
		Icon:      icon,
		CreatedAt: time.Now(),
	}
}

// HasMember reports whether the user is in the channel's member list
func (c *Channel) HasMember(userID uuid.UUID) bool {
	for _, id := range c.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AddMember adds a user to the member list if not already present
func (c *Channel) AddMember(userID uuid.UUID) {
	if !c.HasMember(userID) {
		c.MemberIDs = append(c.MemberIDs, userID)
	}
}

// RemoveMember removes a user from the member list
func (c *Channel) RemoveMember(userID uuid.UUID) {
	for i, id := range c.MemberIDs {
		if id == userID {
			c.MemberIDs = append(c.MemberIDs[:i], c.MemberIDs[i+1:]...)
			return
		}
	}
}
