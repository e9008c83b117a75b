package transport

import (
	"time"

	"github.com/driftchat/drift/internal/models"
	"github.com/driftchat/drift/internal/protocol"
	"github.com/google/uuid"
)

// Event is an inbound transport event. The concrete types below form a
// closed set; events for a single channel are delivered in the order the
// server emitted them.
type Event interface {
	isEvent()
}

// ConnectedEvent is emitted once the session is authenticated. Ready holds
// the initial sync (own user, channel list, user table).
type ConnectedEvent struct {
	Ready *protocol.ReadyPayload
}

// ReconnectingEvent is emitted before each reconnect attempt
type ReconnectingEvent struct {
	Attempt int
	Wait    time.Duration
}

// ConnectionLostEvent is emitted when the connection drops. Permanent is
// set once the bounded retry budget is exhausted; until then the client
// keeps retrying in the background.
type ConnectionLostEvent struct {
	Err       error
	Permanent bool
}

// MessageEvent carries an inbound chat message
type MessageEvent struct {
	Message *models.Message
	Author  *models.User
}

// ChannelCreatedEvent carries a server-confirmed new channel
type ChannelCreatedEvent struct {
	Channel *models.Channel
}

// ChannelDeletedEvent carries a server-confirmed channel removal
type ChannelDeletedEvent struct {
	ID uuid.UUID
}

// UserJoinedEvent is emitted when a user joins a channel
type UserJoinedEvent struct {
	ChannelID uuid.UUID
	User      *models.User
}

// UserLeftEvent is emitted when a user leaves a channel
type UserLeftEvent struct {
	ChannelID uuid.UUID
	UserID    uuid.UUID
}

// FileOfferEvent is emitted when a file becomes available for download
type FileOfferEvent struct {
	Offer *protocol.FileOfferPayload
}

// SendFailedEvent reports that a message send was rejected or gave up after
// retries; the nonce identifies the local-echo message to mark failed.
type SendFailedEvent struct {
	Nonce  string
	Reason string
}

// ErrorEvent surfaces a server-reported error that is not tied to a
// particular send. Code is one of the protocol.ErrorCode values.
type ErrorEvent struct {
	Code    int
	Message string
}

func (ConnectedEvent) isEvent()      {}
func (ReconnectingEvent) isEvent()   {}
func (ConnectionLostEvent) isEvent() {}
func (MessageEvent) isEvent()        {}
func (ChannelCreatedEvent) isEvent() {}
func (ChannelDeletedEvent) isEvent() {}
func (UserJoinedEvent) isEvent()     {}
func (UserLeftEvent) isEvent()       {}
func (FileOfferEvent) isEvent()      {}
func (SendFailedEvent) isEvent()     {}
func (ErrorEvent) isEvent()          {}
