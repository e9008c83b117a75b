package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/driftchat/drift/internal/models"
	"github.com/driftchat/drift/internal/protocol"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by sends while no session is established and
// the operation cannot be queued.
var ErrNotConnected = errors.New("transport: not connected")

// ErrSendBufferFull is returned when the outgoing queue is saturated
var ErrSendBufferFull = errors.New("transport: send buffer full")

var errClientClosed = errors.New("transport: client closed")

const (
	readLimit     = 512 * 1024
	readDeadline  = 60 * time.Second
	writeDeadline = 10 * time.Second
	pingInterval  = 54 * time.Second
)

// Client maintains the WebSocket session with the chat server. It exposes a
// single ordered event stream consumed by the foreground loop; all socket
// I/O happens on background goroutines. Lost connections are retried with
// exponential backoff, and chat sends that were in flight when the
// connection dropped are resent, in their original order, after the session
// is re-established.
type Client struct {
	addr    string
	token   string
	backoff *Backoff
	log     *zap.Logger

	events chan Event
	send   chan *protocol.Message

	mu      sync.Mutex
	conn    *websocket.Conn
	lastSeq int64
	// sessionDone is closed when the current session's socket dies; the
	// write pump and heartbeat goroutine of that session exit on it.
	sessionDone chan struct{}
	// pending holds sends that have not yet been confirmed (by nonce) or
	// rejected; resent in order on reconnect.
	pending []*protocol.SendMessagePayload

	done       chan struct{}
	closeOnce  sync.Once
	eventsOnce sync.Once
	wg         sync.WaitGroup
}

// NewClient creates a client for the given server address. The address may
// use an http(s) or ws(s) scheme.
func NewClient(addr, token string, backoff *Backoff, log *zap.Logger) *Client {
	if backoff == nil {
		backoff = defaultBackoff()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		addr:    addr,
		token:   token,
		backoff: backoff,
		log:     log,
		events:  make(chan Event, 256),
		send:    make(chan *protocol.Message, 256),
		done:    make(chan struct{}),
	}
}

// Events returns the inbound event stream. The stream is not restartable;
// it is closed only when the client shuts down.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect establishes the initial session. Failure here is a startup error
// for the caller to treat as fatal; once Connect returns nil the client
// keeps the session alive on its own until Close.
func (c *Client) Connect() error {
	conn, err := c.dial()
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if err := c.identify(conn); err != nil {
		conn.Close()
		return err
	}
	c.wg.Add(1)
	go c.run(conn)
	return nil
}

// Close signals background goroutines to stop and waits for them, bounded
// by the given timeout. An unresponsive socket cannot hang shutdown: after
// the timeout the connection is torn down and Close returns.
func (c *Client) Close(timeout time.Duration) error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.mu.Lock()
	if c.conn != nil {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
	c.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		c.eventsOnce.Do(func() { close(c.events) })
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("transport: shutdown timed out after %s", timeout)
	}
}

// SendMessage queues a chat message send. The send is fire-and-forget:
// delivery is confirmed later by a MessageEvent carrying the same nonce, or
// refused by a SendFailedEvent. While disconnected the message stays queued
// and is sent after reconnection.
func (c *Client) SendMessage(payload *protocol.SendMessagePayload) error {
	c.mu.Lock()
	c.pending = append(c.pending, payload)
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected {
		// Will be flushed by the next session.
		return nil
	}
	msg, err := protocol.NewMessage(protocol.OpSendMessage, payload)
	if err != nil {
		return err
	}
	return c.queue(msg)
}

// CreateChannel asks the server to create a channel; confirmation arrives
// as a ChannelCreatedEvent.
func (c *Client) CreateChannel(name, icon string) error {
	msg, err := protocol.NewMessage(protocol.OpCreateChannel, &protocol.CreateChannelPayload{
		Name: name,
		Icon: icon,
	})
	if err != nil {
		return err
	}
	return c.queue(msg)
}

// RequestUsers asks the server for the current user table
func (c *Client) RequestUsers() error {
	msg, err := protocol.NewMessage(protocol.OpRequestUsers, nil)
	if err != nil {
		return err
	}
	return c.queue(msg)
}

// Token returns the session token used to identify
func (c *Client) Token() string {
	return c.token
}

// PendingCount returns the number of unconfirmed sends
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) queue(msg *protocol.Message) error {
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) identify(conn *websocket.Conn) error {
	msg, err := protocol.NewMessage(protocol.OpIdentify, &protocol.IdentifyPayload{
		Token:  c.token,
		Client: "drift-tui",
	})
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to identify: %w", err)
	}
	return nil
}

// run owns the session lifecycle: it drives one session at a time and
// reconnects with backoff in between. It exits when the client is closed or
// the retry budget runs out.
func (c *Client) run(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		err := c.session(conn)
		if c.isClosed() || errors.Is(err, errClientClosed) {
			return
		}
		c.log.Warn("connection lost", zap.Error(err))
		c.emit(ConnectionLostEvent{Err: err})

		conn = nil
		attempt := 0
		for conn == nil {
			if c.backoff.Exhausted(attempt) {
				c.log.Error("reconnect attempts exhausted", zap.Int("attempts", attempt))
				c.failPending("connection lost")
				c.emit(ConnectionLostEvent{Err: err, Permanent: true})
				return
			}
			c.emit(ReconnectingEvent{Attempt: attempt + 1, Wait: c.backoff.Delay(attempt)})
			if !c.backoff.Wait(attempt, c.done) {
				return
			}
			attempt++
			var dialErr error
			conn, dialErr = c.dial()
			if dialErr != nil {
				c.log.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(dialErr))
				err = dialErr
				continue
			}
			if idErr := c.identify(conn); idErr != nil {
				conn.Close()
				conn = nil
				err = idErr
			}
		}
	}
}

// session services a single connection until it fails. It flushes the
// pending queue, then runs the write pump in the background and reads until
// the socket errors out.
func (c *Client) session(conn *websocket.Conn) error {
	sessionDone := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.sessionDone = sessionDone
	pending := make([]*protocol.SendMessagePayload, len(c.pending))
	copy(pending, c.pending)
	c.mu.Unlock()

	defer func() {
		close(sessionDone)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	// Drop writes queued for a previous session. Chat sends are replayed
	// from the pending queue below; writing the stale copies too would put
	// the same nonce on the wire twice.
	for drained := false; !drained; {
		select {
		case <-c.send:
		default:
			drained = true
		}
	}

	// Resend unconfirmed messages in their original order. The pump is not
	// running yet, so writing directly is safe.
	for _, p := range pending {
		msg, err := protocol.NewMessage(protocol.OpSendMessage, p)
		if err != nil {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("failed to flush pending sends: %w", err)
		}
	}

	go c.writePump(conn, sessionDone)

	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("failed to parse server message", zap.Error(err))
			continue
		}
		c.handleMessage(&msg)
	}
}

func (c *Client) writePump(conn *websocket.Conn, sessionDone <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteJSON(msg); err != nil {
				c.log.Warn("failed to write message", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-sessionDone:
			return
		case <-c.done:
			return
		}
	}
}

func (c *Client) handleMessage(msg *protocol.Message) {
	if msg.Seq != nil {
		c.mu.Lock()
		c.lastSeq = *msg.Seq
		c.mu.Unlock()
	}

	switch msg.Op {
	case protocol.OpHello:
		var payload protocol.HelloPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.log.Warn("failed to parse hello payload", zap.Error(err))
			return
		}
		c.startHeartbeat(time.Duration(payload.HeartbeatInterval) * time.Millisecond)

	case protocol.OpHeartbeatAck:
		// Connection is healthy.

	case protocol.OpReady:
		var payload protocol.ReadyPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.log.Warn("failed to parse ready payload", zap.Error(err))
			return
		}
		c.emit(ConnectedEvent{Ready: &payload})

	case protocol.OpInvalidSession:
		c.failPending("invalid session")
		c.emit(ConnectionLostEvent{Err: errors.New("invalid session"), Permanent: true})

	case protocol.OpDispatch:
		c.handleDispatch(msg)
	}
}

func (c *Client) handleDispatch(msg *protocol.Message) {
	switch msg.Type {
	case protocol.EventMessageCreate:
		var payload protocol.MessageCreatePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.log.Warn("bad message_create payload", zap.Error(err))
			return
		}
		if payload.Message == nil {
			return
		}
		payload.Message.Status = models.StatusConfirmed
		if payload.Nonce != "" {
			c.ackPending(payload.Nonce)
		}
		c.emit(MessageEvent{Message: payload.Message, Author: payload.Author})

	case protocol.EventChannelCreate:
		var payload protocol.ChannelCreatePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.log.Warn("bad channel_create payload", zap.Error(err))
			return
		}
		c.emit(ChannelCreatedEvent{Channel: payload.Channel})

	case protocol.EventChannelDelete:
		var payload protocol.ChannelDeletePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		c.emit(ChannelDeletedEvent{ID: payload.ID})

	case protocol.EventUserJoin:
		var payload protocol.UserJoinPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		c.emit(UserJoinedEvent{ChannelID: payload.ChannelID, User: payload.User})

	case protocol.EventUserLeave:
		var payload protocol.UserLeavePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		c.emit(UserLeftEvent{ChannelID: payload.ChannelID, UserID: payload.UserID})

	case protocol.EventFileOffer:
		var payload protocol.FileOfferPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		c.emit(FileOfferEvent{Offer: &payload})

	case protocol.EventSendRejected:
		var payload protocol.SendRejectedPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		c.ackPending(payload.Nonce)
		c.emit(SendFailedEvent{Nonce: payload.Nonce, Reason: payload.Reason})

	case protocol.EventError:
		var payload protocol.ErrorPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			return
		}
		c.emit(ErrorEvent{Code: payload.Code, Message: payload.Message})
	}
}

// ackPending drops the pending entry with the given nonce
func (c *Client) ackPending(nonce string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p.Nonce == nonce {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// failPending gives up on every queued send, one SendFailedEvent each, in
// queue order. Used when the session is gone for good.
func (c *Client) failPending(reason string) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, p := range pending {
		c.emit(SendFailedEvent{Nonce: p.Nonce, Reason: reason})
	}
}

// startHeartbeat runs one heartbeat goroutine for the current session. It
// is bound to the session's done channel, so a reconnect faster than one
// interval cannot leave the previous session's heartbeat ticking.
func (c *Client) startHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.mu.Lock()
	sessionDone := c.sessionDone
	c.mu.Unlock()
	if sessionDone == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.mu.Lock()
				seq := c.lastSeq
				c.mu.Unlock()
				msg, err := protocol.NewMessage(protocol.OpHeartbeat, &protocol.HeartbeatPayload{
					LastSequence: &seq,
				})
				if err != nil {
					return
				}
				select {
				case c.send <- msg:
				default:
				}
			case <-sessionDone:
				return
			case <-c.done:
				return
			}
		}
	}()
}

// emit delivers an event without ever blocking shutdown
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
