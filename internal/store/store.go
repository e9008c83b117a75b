// Package store holds the in-memory model of channels, messages and users.
//
// The store is written under the single-writer discipline: only the
// foreground update loop calls mutating methods, so no locking is needed.
// Background tasks influence it exclusively through events handed to Apply
// by that same loop.
package store

import (
	"sort"

	"github.com/driftchat/drift/internal/models"
	"github.com/driftchat/drift/internal/protocol"
	"github.com/driftchat/drift/internal/transport"
	"github.com/google/uuid"
)

// Store is the in-memory channel/message/user model
type Store struct {
	self     *models.User
	channels []*models.Channel
	messages map[uuid.UUID][]*models.Message
	users    map[uuid.UUID]*models.User
	offers   []*protocol.FileOfferPayload

	// byFile indexes messages carrying an attachment so pipeline progress
	// can be applied without scanning every channel.
	byFile map[uuid.UUID]*models.Message

	// active is the channel currently focused in the message view; inbound
	// messages to other channels bump their unread count.
	active uuid.UUID
}

// New creates an empty store
func New() *Store {
	return &Store{
		messages: make(map[uuid.UUID][]*models.Message),
		users:    make(map[uuid.UUID]*models.User),
		byFile:   make(map[uuid.UUID]*models.Message),
	}
}

// Self returns the authenticated user, if known
func (s *Store) Self() *models.User {
	return s.self
}

// SetSelf records the authenticated user
func (s *Store) SetSelf(u *models.User) {
	if u != nil {
		s.self = u
		s.users[u.ID] = u
	}
}

// Apply folds a transport event into the store. Events for one channel
// arrive in server order; ordering within a channel is restored on apply by
// seq, so cross-event arrival order does not matter.
func (s *Store) Apply(ev transport.Event) {
	switch ev := ev.(type) {
	case transport.ConnectedEvent:
		s.applyReady(ev.Ready)
	case transport.MessageEvent:
		s.applyMessage(ev.Message, ev.Author)
	case transport.ChannelCreatedEvent:
		s.upsertChannel(ev.Channel)
	case transport.ChannelDeletedEvent:
		s.removeChannel(ev.ID)
	case transport.UserJoinedEvent:
		s.applyUserJoined(ev.ChannelID, ev.User)
	case transport.UserLeftEvent:
		s.applyUserLeft(ev.ChannelID, ev.UserID)
	case transport.FileOfferEvent:
		s.applyFileOffer(ev.Offer)
	case transport.SendFailedEvent:
		s.MarkSendFailed(ev.Nonce)
	}
}

func (s *Store) applyReady(ready *protocol.ReadyPayload) {
	if ready == nil {
		return
	}
	s.SetSelf(ready.User)
	for _, u := range ready.Users {
		if u != nil {
			s.users[u.ID] = u
		}
	}
	for _, ch := range ready.Channels {
		if ch != nil {
			s.upsertChannel(ch)
		}
	}
}

func (s *Store) applyMessage(msg *models.Message, author *models.User) {
	if msg == nil {
		return
	}
	if author != nil {
		s.users[author.ID] = author
	}

	msgs := s.messages[msg.ChannelID]

	// Local echo reconciliation: a confirmed message carrying the nonce of
	// a pending entry replaces that entry in place, keeping its screen
	// position, instead of being appended as a duplicate.
	if msg.Nonce != "" {
		for _, existing := range msgs {
			if existing.Status == models.StatusPendingLocal && existing.Nonce == msg.Nonce {
				existing.ID = msg.ID
				existing.Seq = msg.Seq
				existing.Body = msg.Body
				existing.CreatedAt = msg.CreatedAt
				existing.Attachment = msg.Attachment
				existing.Status = models.StatusConfirmed
				s.indexAttachment(existing)
				return
			}
		}
	}

	s.messages[msg.ChannelID] = insertBySeq(msgs, msg)
	s.indexAttachment(msg)

	if ch := s.Channel(msg.ChannelID); ch != nil && msg.ChannelID != s.active {
		ch.UnreadCount++
	}
}

// insertBySeq places a confirmed message so confirmed entries stay in
// ascending seq order. Pending-local entries (seq 0) float at the tail.
func insertBySeq(msgs []*models.Message, msg *models.Message) []*models.Message {
	if msg.Status == models.StatusPendingLocal {
		return append(msgs, msg)
	}
	pos := len(msgs)
	for pos > 0 && msgs[pos-1].Status == models.StatusPendingLocal {
		pos--
	}
	for pos > 0 && msgs[pos-1].Seq > msg.Seq {
		pos--
	}
	msgs = append(msgs, nil)
	copy(msgs[pos+1:], msgs[pos:])
	msgs[pos] = msg
	return msgs
}

func (s *Store) indexAttachment(msg *models.Message) {
	if msg.Attachment != nil {
		s.byFile[msg.Attachment.FileID] = msg
	}
}

// LocalEcho appends a provisional message for a user send and returns it.
// The caller hands the same nonce to the transport.
func (s *Store) LocalEcho(channelID uuid.UUID, body string) *models.Message {
	authorID := uuid.Nil
	if s.self != nil {
		authorID = s.self.ID
	}
	msg := models.NewLocalEcho(channelID, authorID, body)
	s.messages[channelID] = append(s.messages[channelID], msg)
	return msg
}

// MarkSendFailed flags the pending message with the given nonce as failed.
// Failed messages stay visible at their position; they are never silently
// dropped.
func (s *Store) MarkSendFailed(nonce string) {
	for _, msgs := range s.messages {
		for _, msg := range msgs {
			if msg.Status == models.StatusPendingLocal && msg.Nonce == nonce {
				msg.Status = models.StatusFailed
				return
			}
		}
	}
}

// PrependHistory merges an older page of confirmed messages into a channel
func (s *Store) PrependHistory(channelID uuid.UUID, page []*models.Message) {
	for _, msg := range page {
		if msg == nil {
			continue
		}
		msg.Status = models.StatusConfirmed
		s.messages[channelID] = insertBySeq(s.messages[channelID], msg)
		s.indexAttachment(msg)
	}
}

func (s *Store) upsertChannel(ch *models.Channel) {
	for i, existing := range s.channels {
		if existing.ID == ch.ID {
			ch.UnreadCount = existing.UnreadCount
			s.channels[i] = ch
			return
		}
	}
	s.channels = append(s.channels, ch)
	if _, ok := s.messages[ch.ID]; !ok {
		s.messages[ch.ID] = nil
	}
}

func (s *Store) removeChannel(id uuid.UUID) {
	for i, ch := range s.channels {
		if ch.ID == id {
			s.channels = append(s.channels[:i], s.channels[i+1:]...)
			break
		}
	}
	for _, msg := range s.messages[id] {
		if msg.Attachment != nil {
			delete(s.byFile, msg.Attachment.FileID)
		}
	}
	delete(s.messages, id)
	if s.active == id {
		s.active = uuid.Nil
	}
}

func (s *Store) applyUserJoined(channelID uuid.UUID, u *models.User) {
	if u == nil {
		return
	}
	s.users[u.ID] = u
	if ch := s.Channel(channelID); ch != nil {
		ch.AddMember(u.ID)
	}
}

func (s *Store) applyUserLeft(channelID, userID uuid.UUID) {
	if ch := s.Channel(channelID); ch != nil {
		ch.RemoveMember(userID)
	}
}

func (s *Store) applyFileOffer(offer *protocol.FileOfferPayload) {
	if offer == nil {
		return
	}
	for i, existing := range s.offers {
		if existing.FileID == offer.FileID {
			s.offers[i] = offer
			return
		}
	}
	s.offers = append(s.offers, offer)

	// Enrich any message already referencing the file.
	if msg, ok := s.byFile[offer.FileID]; ok {
		msg.Attachment.Size = offer.Size
		msg.Attachment.Checksum = offer.Checksum
	}
}

// SetActive marks the channel focused in the message view and clears its
// unread count.
func (s *Store) SetActive(id uuid.UUID) {
	s.active = id
	if ch := s.Channel(id); ch != nil {
		ch.UnreadCount = 0
	}
}

// Active returns the id of the focused channel
func (s *Store) Active() uuid.UUID {
	return s.active
}

// Channel returns the channel with the given id, or nil
func (s *Store) Channel(id uuid.UUID) *models.Channel {
	for _, ch := range s.channels {
		if ch.ID == id {
			return ch
		}
	}
	return nil
}

// Messages returns the live message slice for a channel; callers outside
// tests should prefer Snapshot.
func (s *Store) Messages(channelID uuid.UUID) []*models.Message {
	return s.messages[channelID]
}

// Attachment returns the message carrying the given file id, or nil
func (s *Store) Attachment(fileID uuid.UUID) *models.Attachment {
	if msg, ok := s.byFile[fileID]; ok {
		return msg.Attachment
	}
	return nil
}

// FileChannel returns the channel of the message carrying the given file,
// or uuid.Nil when the file is unknown.
func (s *Store) FileChannel(fileID uuid.UUID) uuid.UUID {
	if msg, ok := s.byFile[fileID]; ok {
		return msg.ChannelID
	}
	return uuid.Nil
}

// Offers returns file offers in arrival order
func (s *Store) Offers() []*protocol.FileOfferPayload {
	return s.offers
}

// FindOffer returns the offer for a file id, or nil
func (s *Store) FindOffer(fileID uuid.UUID) *protocol.FileOfferPayload {
	for _, o := range s.offers {
		if o.FileID == fileID {
			return o
		}
	}
	return nil
}

// Usernames returns all known usernames sorted lexicographically. The
// deterministic order keeps popup filtering stable.
func (s *Store) Usernames() []string {
	names := make([]string, 0, len(s.users))
	for _, u := range s.users {
		names = append(names, u.Username)
	}
	sort.Strings(names)
	return names
}

// User returns the user with the given id, or nil
func (s *Store) User(id uuid.UUID) *models.User {
	return s.users[id]
}

// View is an immutable snapshot handed to the renderer. Channel and message
// values are copies; mutating the store after Snapshot does not change a
// view already taken.
type View struct {
	Self     *models.User
	Channels []models.Channel
	Active   uuid.UUID
	// Messages holds the active channel's messages in display order.
	Messages []models.Message
}

// Snapshot returns a render-ready view of the store
func (s *Store) Snapshot() View {
	v := View{
		Self:   s.self,
		Active: s.active,
	}
	v.Channels = make([]models.Channel, len(s.channels))
	for i, ch := range s.channels {
		v.Channels[i] = *ch
	}
	msgs := s.messages[s.active]
	v.Messages = make([]models.Message, len(msgs))
	for i, m := range msgs {
		v.Messages[i] = *m
	}
	return v
}
