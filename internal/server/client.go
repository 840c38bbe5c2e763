package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/sarthi/internal/types"
	"github.com/teris-io/shortid"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	limiter    *rate.Limiter
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	id, err := shortid.Generate()
	if err != nil {
		id = time.Now().UTC().Format("20060102150405.000000000")
	}

	return &Client{
		id:         id,
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, sendBufferSize),
		limiter:    rate.NewLimiter(rate.Limit(cs.messageRate), cs.messageBurst),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Id() string {
	return c.id
}

// Deliver queues msg for the write loop without blocking.
func (c *Client) Deliver(msg *ServerMessage) error {
	select {
	case <-c.stop:
		return ErrConnectionClosed
	default:
	}

	if !c.queueMessage(msg) {
		return ErrSendBufferFull
	}

	return nil
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *ClientMessage) {
	switch {
	case msg.Join != nil:
		c.joinChannel(msg)
	case msg.Leave != nil:
		c.leaveChannel(msg)
	case msg.SendMessage != nil:
		c.sendChatMessage(msg)
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

func (c *Client) joinChannel(msg *ClientMessage) {
	if msg.Join.SenderId != msg.GetUserId() {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	channelId, err := c.chatServer.Join(c, msg.Join.SenderId, msg.Join.ReceiverId)
	if err != nil {
		c.log.Printf("join %d->%d: %v", msg.Join.SenderId, msg.Join.ReceiverId, err)
		c.queueMessage(ErrFromError(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"channel_id": channelId}))
}

func (c *Client) leaveChannel(msg *ClientMessage) {
	if msg.Leave.SenderId != msg.GetUserId() {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	channelId, err := c.chatServer.LeaveChannel(c, msg.Leave.SenderId, msg.Leave.ReceiverId)
	if err != nil {
		c.queueMessage(ErrFromError(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"channel_id": channelId}))
}

func (c *Client) sendChatMessage(msg *ClientMessage) {
	sm := msg.SendMessage
	if sm.SenderId != msg.GetUserId() {
		c.queueMessage(ErrForbidden(msg.Id))
		return
	}

	if !c.limiter.Allow() {
		c.queueMessage(ErrTooManyRequests(msg.Id))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*c.chatServer.storeTimeout)
	defer cancel()

	saved, err := c.chatServer.Relay(ctx, sm.SenderId, sm.ReceiverId, sm.Content)
	if err != nil {
		c.log.Printf("relay %d->%d: %v", sm.SenderId, sm.ReceiverId, err)
		c.queueMessage(ErrFromError(msg.Id, err))
		return
	}

	c.queueMessage(NoErrAccepted(msg.Id, map[string]any{
		"message_id": saved.Id,
		"timestamp":  saved.Timestamp,
	}))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("failed to send message to connection %s, channel is full", c.id)
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.UnregisterClient(c)
	c.stopClient()
}
