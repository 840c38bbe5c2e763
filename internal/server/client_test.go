package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/sarthi/internal/stats"
	"github.com/npezzotti/sarthi/internal/testutil"
	"github.com/npezzotti/sarthi/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func Test_queueMessage(t *testing.T) {
	t.Run("successful queue", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		res := c.queueMessage(&ServerMessage{})
		assert.True(t, res, "expected queueMessage to return true when channel is not full")

		select {
		case msg := <-c.send:
			assert.NotNil(t, msg, "expected a message to be sent to the client")
		default:
			t.Error("expected a message to be sent to the client, but none was sent")
		}
	})
	t.Run("channel full", func(t *testing.T) {
		c := &Client{
			send: make(chan *ServerMessage, 1),
			log:  testutil.TestLogger(t),
		}

		c.send <- &ServerMessage{}
		res := c.queueMessage(&ServerMessage{})
		assert.False(t, res, "expected queueMessage to return false when channel is full")
	})
}

func TestDeliver(t *testing.T) {
	t.Run("queues", func(t *testing.T) {
		c := &Client{send: make(chan *ServerMessage, 1), stop: make(chan struct{}), log: testutil.TestLogger(t)}
		assert.NoError(t, c.Deliver(&ServerMessage{}))
		assert.Len(t, c.send, 1)
	})

	t.Run("full buffer", func(t *testing.T) {
		c := &Client{send: make(chan *ServerMessage, 1), stop: make(chan struct{}), log: testutil.TestLogger(t)}
		c.send <- &ServerMessage{}
		assert.ErrorIs(t, c.Deliver(&ServerMessage{}), ErrSendBufferFull)
	})

	t.Run("stopped", func(t *testing.T) {
		c := &Client{send: make(chan *ServerMessage, 1), stop: make(chan struct{}), log: testutil.TestLogger(t)}
		c.stopClient()
		assert.ErrorIs(t, c.Deliver(&ServerMessage{}), ErrConnectionClosed)
		assert.Empty(t, c.send)
	})
}

func Test_stopClient(t *testing.T) {
	c := &Client{
		stop: make(chan struct{}),
	}

	c.stopClient()
	c.stopClient()

	select {
	case <-c.stop:
	default:
		t.Error("expected stop channel to be closed")
	}
}

func nextResponse(t *testing.T, c *Client) *Response {
	t.Helper()

	select {
	case msg := <-c.send:
		require.NotNil(t, msg.Response, "expected a response")
		return msg.Response
	case <-time.After(time.Second):
		t.Fatal("expected a response")
		return nil
	}
}

func TestDispatch(t *testing.T) {
	cs := newTestChatServer(t, newFakeStore(1, 2))

	newClient := func(t *testing.T, userId int) *Client {
		c := newTestClient(t, cs, "c"+strconv.Itoa(userId), userId)
		c.limiter = rate.NewLimiter(rate.Limit(1), 1)
		return c
	}

	t.Run("join", func(t *testing.T) {
		c := newClient(t, 1)
		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 1}, Join: &Join{SenderId: 1, ReceiverId: 2}, client: c})

		res := nextResponse(t, c)
		assert.Equal(t, http.StatusOK, res.ResponseCode)
		assert.Equal(t, map[string]any{"channel_id": "chat_1_2"}, res.Data)
	})

	t.Run("join as someone else", func(t *testing.T) {
		c := newClient(t, 1)
		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 2}, Join: &Join{SenderId: 2, ReceiverId: 1}, client: c})

		assert.Equal(t, http.StatusForbidden, nextResponse(t, c).ResponseCode)
	})

	t.Run("join unknown user", func(t *testing.T) {
		c := newClient(t, 1)
		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 3}, Join: &Join{SenderId: 1, ReceiverId: 77}, client: c})

		assert.Equal(t, http.StatusNotFound, nextResponse(t, c).ResponseCode)
	})

	t.Run("leave", func(t *testing.T) {
		c := newClient(t, 2)
		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 4}, Leave: &Leave{SenderId: 2, ReceiverId: 1}, client: c})

		assert.Equal(t, http.StatusOK, nextResponse(t, c).ResponseCode)
	})

	t.Run("send message then throttle", func(t *testing.T) {
		c := newClient(t, 1)
		send := &SendMessage{SenderId: 1, ReceiverId: 2, Content: "hello"}

		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 5}, SendMessage: send, client: c})
		res := nextResponse(t, c)
		assert.Equal(t, http.StatusAccepted, res.ResponseCode)
		assert.Contains(t, res.Data, "message_id")

		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 6}, SendMessage: send, client: c})
		assert.Equal(t, http.StatusTooManyRequests, nextResponse(t, c).ResponseCode)
	})

	t.Run("send empty message", func(t *testing.T) {
		c := newClient(t, 2)
		c.dispatch(&ClientMessage{
			BaseMessage: BaseMessage{Id: 7},
			SendMessage: &SendMessage{SenderId: 2, ReceiverId: 1, Content: "   "},
			client:      c,
		})

		res := nextResponse(t, c)
		assert.Equal(t, http.StatusBadRequest, res.ResponseCode)
		assert.Equal(t, ErrEmptyContent.Error(), res.Error)
	})

	t.Run("send as someone else", func(t *testing.T) {
		c := newClient(t, 2)
		c.dispatch(&ClientMessage{
			BaseMessage: BaseMessage{Id: 8},
			SendMessage: &SendMessage{SenderId: 1, ReceiverId: 2, Content: "spoofed"},
			client:      c,
		})

		assert.Equal(t, http.StatusForbidden, nextResponse(t, c).ResponseCode)
	})

	t.Run("no event", func(t *testing.T) {
		c := newClient(t, 1)
		c.dispatch(&ClientMessage{BaseMessage: BaseMessage{Id: 9}, client: c})

		res := nextResponse(t, c)
		assert.Equal(t, http.StatusBadRequest, res.ResponseCode)
		assert.Equal(t, "invalid message format", res.Error)
	})
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(*ServerMessage) bool) *ServerMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg ServerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
			return nil
		}
		if match(&msg) {
			return &msg
		}
	}
}

func isResponse(id int) func(*ServerMessage) bool {
	return func(msg *ServerMessage) bool { return msg.Response != nil && msg.Id == id }
}

func TestClient_WebSocket(t *testing.T) {
	cs := newTestChatServer(t, newFakeStore(1, 2))
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId, _ := strconv.Atoi(r.URL.Query().Get("user"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := NewClient(types.User{Id: userId}, conn, cs, testutil.TestLogger(t))
		if err := cs.RegisterClient(c); err != nil {
			conn.Close()
			return
		}
		go c.Write()
		go c.Read()
	}))
	defer srv.Close()

	dial := func(userId int) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + strconv.Itoa(userId)
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}

	alice := dial(1)
	bob := dial(2)

	require.NoError(t, alice.WriteJSON(map[string]any{"id": 1, "join": map[string]int{"sender_id": 1, "receiver_id": 2}}))
	assert.Equal(t, http.StatusOK, readUntil(t, alice, isResponse(1)).Response.ResponseCode)

	require.NoError(t, bob.WriteJSON(map[string]any{"id": 1, "join": map[string]int{"sender_id": 2, "receiver_id": 1}}))
	assert.Equal(t, http.StatusOK, readUntil(t, bob, isResponse(1)).Response.ResponseCode)

	require.NoError(t, alice.WriteJSON(map[string]any{
		"id":           2,
		"send_message": map[string]any{"sender_id": 1, "receiver_id": 2, "content": "hello"},
	}))

	isReceive := func(msg *ServerMessage) bool { return msg.ReceiveMessage != nil }
	for _, conn := range []*websocket.Conn{alice, bob} {
		got := readUntil(t, conn, isReceive).ReceiveMessage
		assert.Equal(t, 1, got.SenderId)
		assert.Equal(t, 2, got.ReceiverId)
		assert.Equal(t, "hello", got.Content)
		assert.False(t, got.Timestamp.IsZero())
	}

	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte("not json")))
	res := readUntil(t, bob, func(msg *ServerMessage) bool { return msg.Response != nil })
	assert.Equal(t, http.StatusBadRequest, res.Response.ResponseCode)

	alice.Close()
	assert.Eventually(t, func() bool {
		cs.clientsLock.Lock()
		defer cs.clientsLock.Unlock()
		return len(cs.clients) == 1
	}, time.Second, 10*time.Millisecond, "expected a closed connection to be unregistered")

	history, err := cs.History(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestClient_ShutdownWithOpenConnection(t *testing.T) {
	su := stats.NewStatsUpdater(http.NewServeMux())
	cs, err := NewChatServer(testutil.TestLogger(t), newFakeStore(1, 2), su)
	require.NoError(t, err)
	su.Run()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := NewClient(types.User{Id: 1}, conn, cs, testutil.TestLogger(t))
		if err := cs.RegisterClient(c); err != nil {
			conn.Close()
			return
		}
		go c.Write()
		go c.Read()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		cs.clientsLock.Lock()
		defer cs.clientsLock.Unlock()
		return len(cs.clients) == 1
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, cs.Shutdown(ctx))

	cs.clientsLock.Lock()
	assert.Empty(t, cs.clients, "expected the connection to unregister before shutdown returns")
	cs.clientsLock.Unlock()

	assert.NotPanics(t, su.Stop)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "expected a going away close frame, got %v", err)
}
