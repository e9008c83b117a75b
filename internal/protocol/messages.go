package protocol

import (
	"encoding/json"
	"time"

	"github.com/driftchat/drift/internal/models"
	"github.com/google/uuid"
)

// OpCode represents the type of WebSocket message
type OpCode int

const (
	// Client -> Server operations
	OpIdentify      OpCode = 0 // Initial authentication
	OpHeartbeat     OpCode = 1 // Keep-alive ping
	OpSendMessage   OpCode = 2 // Send a chat message
	OpCreateChannel OpCode = 3 // Propose a new channel
	OpRequestUsers  OpCode = 4 // Request the active user list

	// Server -> Client operations
	OpDispatch       OpCode = 10 // Event dispatch (most messages)
	OpHeartbeatAck   OpCode = 11 // Heartbeat acknowledgment
	OpHello          OpCode = 12 // Initial connection info
	OpReady          OpCode = 13 // Successful authentication
	OpInvalidSession OpCode = 14 // Authentication failed
)

// EventType represents the type of dispatched event
type EventType string

const (
	EventReady         EventType = "READY"
	EventMessageCreate EventType = "MESSAGE_CREATE"
	EventChannelCreate EventType = "CHANNEL_CREATE"
	EventChannelDelete EventType = "CHANNEL_DELETE"
	EventUserJoin      EventType = "USER_JOIN"
	EventUserLeave     EventType = "USER_LEAVE"
	EventFileOffer     EventType = "FILE_OFFER"
	EventSendRejected  EventType = "SEND_REJECTED"
	EventError         EventType = "ERROR"
)

// Message represents a WebSocket message envelope
type Message struct {
	Op   OpCode          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  *int64          `json:"s,omitempty"` // Sequence number for dispatches
	Type EventType       `json:"t,omitempty"` // Event type for dispatches
}

// NewMessage creates a new protocol message
func NewMessage(op OpCode, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Message{
		Op:   op,
		Data: rawData,
	}, nil
}

// --- Client -> Server Payloads ---

// IdentifyPayload is sent by the client to authenticate the socket
type IdentifyPayload struct {
	Token  string `json:"token"`
	Client string `json:"client,omitempty"`
}

// HeartbeatPayload is sent to keep the connection alive
type HeartbeatPayload struct {
	LastSequence *int64 `json:"last_sequence"`
}

// SendMessagePayload is sent when the user sends a message. Nonce is the
// client-generated correlation token; the server echoes it back on the
// corresponding MESSAGE_CREATE dispatch.
type SendMessagePayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
	Body      string    `json:"body"`
	Nonce     string    `json:"nonce"`
}

// CreateChannelPayload proposes a new channel
type CreateChannelPayload struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// --- Server -> Client Payloads ---

// HelloPayload is sent on initial connection
type HelloPayload struct {
	HeartbeatInterval int `json:"heartbeat_interval"` // Milliseconds
}

// ReadyPayload is sent after successful authentication with the initial sync
type ReadyPayload struct {
	SessionID string            `json:"session_id"`
	User      *models.User      `json:"user"`
	Channels  []*models.Channel `json:"channels"`
	Users     []*models.User    `json:"users"`
}

// MessageCreatePayload is dispatched when a message is created
type MessageCreatePayload struct {
	*models.Message
	Author *models.User `json:"author,omitempty"`
}

// ChannelCreatePayload is dispatched when a channel is created
type ChannelCreatePayload struct {
	*models.Channel
}

// ChannelDeletePayload is dispatched when a channel is deleted
type ChannelDeletePayload struct {
	ID uuid.UUID `json:"id"`
}

// UserJoinPayload is dispatched when a user joins a channel
type UserJoinPayload struct {
	ChannelID uuid.UUID    `json:"channel_id"`
	User      *models.User `json:"user"`
}

// UserLeavePayload is dispatched when a user leaves a channel
type UserLeavePayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// FileOfferPayload is dispatched when a file becomes available for download.
// Checksum is the BLAKE2b-256 hex digest the client verifies after download.
type FileOfferPayload struct {
	ChannelID uuid.UUID `json:"channel_id"`
	FileID    uuid.UUID `json:"file_id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum,omitempty"`
	OfferedAt time.Time `json:"offered_at"`
}

// SendRejectedPayload is dispatched when the server refuses a send; the
// nonce identifies which local message failed.
type SendRejectedPayload struct {
	Nonce  string `json:"nonce"`
	Reason string `json:"reason,omitempty"`
}

// ErrorPayload represents an error response
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrorCodeUnknown        = 0
	ErrorCodeUnauthorized   = 4001
	ErrorCodeInvalidPayload = 4002
	ErrorCodeNotFound       = 4003
	ErrorCodeRateLimited    = 4005
)

// ErrorCodeLabel gives a short human-readable label for a server error code
func ErrorCodeLabel(code int) string {
	switch code {
	case ErrorCodeUnauthorized:
		return "unauthorized"
	case ErrorCodeInvalidPayload:
		return "invalid payload"
	case ErrorCodeNotFound:
		return "not found"
	case ErrorCodeRateLimited:
		return "rate limited"
	default:
		return "server error"
	}
}
