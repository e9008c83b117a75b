package models

import (
	"time"

	"github.com/google/uuid"
)

// SendStatus tracks the delivery state of a message from this client's
// point of view. Inbound messages from other users are always Confirmed.
type SendStatus int

const (
	StatusConfirmed    SendStatus = iota // acknowledged by the server
	StatusPendingLocal                   // local echo, awaiting server confirmation
	StatusFailed                         // send failed after retries
)

// Message represents a chat message.
//
// Seq is assigned by the server and is monotonic per channel; it is the
// ordering key within a channel. Pending local-echo messages have Seq 0
// until the server's MessageCreate (matched by Nonce) fills it in.
type Message struct {
	ID        uuid.UUID `json:"id"`
	ChannelID uuid.UUID `json:"channel_id"`
	AuthorID  uuid.UUID `json:"author_id"`
	Seq       int64     `json:"seq"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`

	// Nonce is the client-generated correlation token echoed back by the
	// server so local echo can be reconciled with the confirmed message.
	Nonce string `json:"nonce,omitempty"`

	Attachment *Attachment `json:"attachment,omitempty"`

	Status SendStatus `json:"-"`
}

// NewLocalEcho creates a provisional message shown before the server
// confirms it. The nonce links it to the eventual MessageCreate event.
func NewLocalEcho(channelID, authorID uuid.UUID, body string) *Message {
	return &Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		AuthorID:  authorID,
		Body:      body,
		CreatedAt: time.Now(),
		Nonce:     uuid.New().String(),
		Status:    StatusPendingLocal,
	}
}

// IsPending reports whether the message is still awaiting confirmation
func (m *Message) IsPending() bool {
	return m.Status == StatusPendingLocal
}

// HasAttachment reports whether the message carries a file reference
func (m *Message) HasAttachment() bool {
	return m.Attachment != nil
}
