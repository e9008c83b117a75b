package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftchat/drift/internal/models"
	"github.com/driftchat/drift/internal/protocol"
	"github.com/driftchat/drift/internal/transport"
)

func confirmed(channelID uuid.UUID, seq int64, body string) *models.Message {
	return &models.Message{
		ID:        uuid.New(),
		ChannelID: channelID,
		AuthorID:  uuid.New(),
		Seq:       seq,
		Body:      body,
		CreatedAt: time.Now(),
		Status:    models.StatusConfirmed,
	}
}

func TestApplyMessageOrdersBySeq(t *testing.T) {
	s := New()
	ch := uuid.New()

	// Deliveries arrive out of order; display order must be by seq.
	for _, seq := range []int64{3, 1, 2, 5, 4} {
		s.Apply(transport.MessageEvent{Message: confirmed(ch, seq, "m")})
	}

	msgs := s.Messages(ch)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}
}

func TestLocalEchoReconciliation(t *testing.T) {
	s := New()
	ch := uuid.New()
	self := &models.User{ID: uuid.New(), Username: "self"}
	s.SetSelf(self)

	echo := s.LocalEcho(ch, "hello")
	require.NotEmpty(t, echo.Nonce)
	require.Equal(t, models.StatusPendingLocal, echo.Status)

	// Server confirms with the same nonce; the pending entry is replaced in
	// place rather than duplicated.
	confirmedMsg := confirmed(ch, 7, "hello")
	confirmedMsg.AuthorID = self.ID
	confirmedMsg.Nonce = echo.Nonce
	s.Apply(transport.MessageEvent{Message: confirmedMsg, Author: self})

	msgs := s.Messages(ch)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusConfirmed, msgs[0].Status)
	assert.Equal(t, int64(7), msgs[0].Seq)
	assert.Equal(t, confirmedMsg.ID, msgs[0].ID)
}

func TestPendingEchoesStayInSendOrder(t *testing.T) {
	s := New()
	ch := uuid.New()
	s.SetSelf(&models.User{ID: uuid.New(), Username: "self"})

	e1 := s.LocalEcho(ch, "one")
	e2 := s.LocalEcho(ch, "two")
	e3 := s.LocalEcho(ch, "three")

	// Confirmations arrive after a reconnect, in the original send order.
	for i, echo := range []*models.Message{e1, e2, e3} {
		m := confirmed(ch, int64(i+1), echo.Body)
		m.Nonce = echo.Nonce
		s.Apply(transport.MessageEvent{Message: m})
	}

	msgs := s.Messages(ch)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"one", "two", "three"},
		[]string{msgs[0].Body, msgs[1].Body, msgs[2].Body})
	for _, m := range msgs {
		assert.Equal(t, models.StatusConfirmed, m.Status)
	}
}

func TestConfirmedInsertsBeforePendingTail(t *testing.T) {
	s := New()
	ch := uuid.New()
	s.SetSelf(&models.User{ID: uuid.New(), Username: "self"})

	s.Apply(transport.MessageEvent{Message: confirmed(ch, 1, "old")})
	echo := s.LocalEcho(ch, "mine")

	// Someone else's message lands while ours is still pending; the pending
	// echo keeps floating at the tail.
	s.Apply(transport.MessageEvent{Message: confirmed(ch, 2, "theirs")})

	msgs := s.Messages(ch)
	require.Len(t, msgs, 3)
	assert.Equal(t, "old", msgs[0].Body)
	assert.Equal(t, "theirs", msgs[1].Body)
	assert.Equal(t, echo.Nonce, msgs[2].Nonce)
}

func TestMarkSendFailed(t *testing.T) {
	s := New()
	ch := uuid.New()
	s.SetSelf(&models.User{ID: uuid.New(), Username: "self"})

	echo := s.LocalEcho(ch, "doomed")
	s.Apply(transport.SendFailedEvent{Nonce: echo.Nonce, Reason: "rate limited"})

	msgs := s.Messages(ch)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.StatusFailed, msgs[0].Status)
}

func TestUnreadCounting(t *testing.T) {
	s := New()
	chA := models.NewChannel("general", "")
	chB := models.NewChannel("random", "")
	s.Apply(transport.ChannelCreatedEvent{Channel: chA})
	s.Apply(transport.ChannelCreatedEvent{Channel: chB})
	s.SetActive(chA.ID)

	s.Apply(transport.MessageEvent{Message: confirmed(chA.ID, 1, "seen")})
	s.Apply(transport.MessageEvent{Message: confirmed(chB.ID, 1, "unseen")})
	s.Apply(transport.MessageEvent{Message: confirmed(chB.ID, 2, "unseen")})

	assert.Equal(t, 0, s.Channel(chA.ID).UnreadCount)
	assert.Equal(t, 2, s.Channel(chB.ID).UnreadCount)

	// Switching to the channel clears its badge.
	s.SetActive(chB.ID)
	assert.Equal(t, 0, s.Channel(chB.ID).UnreadCount)
}

func TestPrependHistory(t *testing.T) {
	s := New()
	ch := uuid.New()
	s.Apply(transport.MessageEvent{Message: confirmed(ch, 10, "latest")})

	page := []*models.Message{
		confirmed(ch, 8, "older"),
		confirmed(ch, 9, "old"),
	}
	s.PrependHistory(ch, page)

	msgs := s.Messages(ch)
	require.Len(t, msgs, 3)
	assert.Equal(t, []int64{8, 9, 10}, []int64{msgs[0].Seq, msgs[1].Seq, msgs[2].Seq})
}

func TestChannelDeleteDropsState(t *testing.T) {
	s := New()
	ch := models.NewChannel("doomed", "")
	s.Apply(transport.ChannelCreatedEvent{Channel: ch})
	s.SetActive(ch.ID)
	s.Apply(transport.MessageEvent{Message: confirmed(ch.ID, 1, "bye")})

	s.Apply(transport.ChannelDeletedEvent{ID: ch.ID})

	assert.Nil(t, s.Channel(ch.ID))
	assert.Empty(t, s.Messages(ch.ID))
	assert.Equal(t, uuid.Nil, s.Active())
}

func TestFileOfferEnrichesAttachment(t *testing.T) {
	s := New()
	ch := uuid.New()
	fileID := uuid.New()

	msg := confirmed(ch, 1, "")
	msg.Attachment = &models.Attachment{FileID: fileID, Filename: "cat.png"}
	s.Apply(transport.MessageEvent{Message: msg})

	s.Apply(transport.FileOfferEvent{Offer: &protocol.FileOfferPayload{
		ChannelID: ch,
		FileID:    fileID,
		Filename:  "cat.png",
		Size:      1234,
		Checksum:  "abcd",
	}})

	att := s.Attachment(fileID)
	require.NotNil(t, att)
	assert.Equal(t, int64(1234), att.Size)
	assert.Equal(t, "abcd", att.Checksum)
	assert.Equal(t, ch, s.FileChannel(fileID))
}

func TestUsernamesSorted(t *testing.T) {
	s := New()
	for _, name := range []string{"zoe", "alice", "albert"} {
		s.Apply(transport.UserJoinedEvent{
			ChannelID: uuid.New(),
			User:      &models.User{ID: uuid.New(), Username: name},
		})
	}
	assert.Equal(t, []string{"albert", "alice", "zoe"}, s.Usernames())
}

func TestSnapshotIsolation(t *testing.T) {
	s := New()
	ch := models.NewChannel("general", "")
	s.Apply(transport.ChannelCreatedEvent{Channel: ch})
	s.SetActive(ch.ID)
	s.Apply(transport.MessageEvent{Message: confirmed(ch.ID, 1, "before")})

	view := s.Snapshot()
	require.Len(t, view.Messages, 1)

	// Mutating the store after the snapshot must not change the view.
	s.Apply(transport.MessageEvent{Message: confirmed(ch.ID, 2, "after")})
	s.Messages(ch.ID)[0].Body = "mutated"

	assert.Len(t, view.Messages, 1)
	assert.Equal(t, "before", view.Messages[0].Body)
}
