package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/npezzotti/sarthi/internal/database"
	"github.com/npezzotti/sarthi/internal/stats"
	"github.com/npezzotti/sarthi/internal/types"
)

const (
	defaultStoreTimeout     = 5 * time.Second
	defaultMaxMessageLength = 1000
)

type Option func(*ChatServer)

// WithStoreTimeout bounds each record store call made by the chat server.
func WithStoreTimeout(d time.Duration) Option {
	return func(cs *ChatServer) { cs.storeTimeout = d }
}

// WithMaxMessageLength sets the maximum message length in characters.
func WithMaxMessageLength(n int) Option {
	return func(cs *ChatServer) { cs.maxMessageLength = n }
}

// WithIdleTimeout sets how long a channel without traffic stays loaded.
func WithIdleTimeout(d time.Duration) Option {
	return func(cs *ChatServer) { cs.idleTimeout = d }
}

func WithRegistry(r ConnectionRegistry) Option {
	return func(cs *ChatServer) { cs.registry = r }
}

// WithMessageRate throttles send_message events per connection.
func WithMessageRate(perSecond float64, burst int) Option {
	return func(cs *ChatServer) {
		cs.messageRate = perSecond
		cs.messageBurst = burst
	}
}

type ChatServer struct {
	log              *log.Logger
	db               database.SarthiRepository
	stats            stats.StatsProvider
	registry         ConnectionRegistry
	storeTimeout     time.Duration
	maxMessageLength int
	idleTimeout      time.Duration
	messageRate      float64
	messageBurst     int
	clients          map[*Client]struct{}
	clientsLock      sync.Mutex
	clientsClosed    bool
	clientsWg        sync.WaitGroup
	channels         map[string]*Channel
	channelsLock     sync.Mutex
	closed           bool
}

func NewChatServer(logger *log.Logger, db database.SarthiRepository, su stats.StatsProvider, opts ...Option) (*ChatServer, error) {
	if db == nil {
		return nil, fmt.Errorf("chat server needs a record store")
	}

	cs := &ChatServer{
		log:              logger,
		db:               db,
		stats:            su,
		registry:         NewRegistry(),
		storeTimeout:     defaultStoreTimeout,
		maxMessageLength: defaultMaxMessageLength,
		idleTimeout:      defaultIdleChannelTimeout,
		messageRate:      5,
		messageBurst:     10,
		clients:          make(map[*Client]struct{}),
		channels:         make(map[string]*Channel),
	}

	for _, opt := range opts {
		opt(cs)
	}

	if cs.storeTimeout <= 0 || cs.idleTimeout <= 0 || cs.maxMessageLength <= 0 {
		return nil, fmt.Errorf("chat server timeouts and limits must be positive")
	}

	su.RegisterMetric(stats.NumActiveClients)
	su.RegisterMetric(stats.NumActiveChannels)
	su.RegisterMetric(stats.NumMessagesRelayed)
	su.RegisterMetric(stats.NumDeliveryFailures)

	return cs, nil
}

// Relay validates and persists a message from senderId to receiverId, then
// broadcasts it to every connection joined to their channel. It returns once
// the message is stored; live delivery continues in the background and never
// fails the call. On a StorageError the caller must not assume the message
// was delivered, and must not assume it was not stored if ctx expired first.
func (cs *ChatServer) Relay(ctx context.Context, senderId, receiverId int, content string) (types.Message, error) {
	if err := validateParticipants(senderId, receiverId); err != nil {
		stats.RelayTotal.WithLabelValues("invalid").Inc()
		return types.Message{}, err
	}
	if err := cs.validateContent(content); err != nil {
		stats.RelayTotal.WithLabelValues("invalid").Inc()
		return types.Message{}, err
	}

	req := &relayRequest{
		senderId:   senderId,
		receiverId: receiverId,
		content:    content,
		reply:      make(chan relayResult, 1),
	}

	if err := cs.enqueue(req); err != nil {
		return types.Message{}, err
	}

	select {
	case res := <-req.reply:
		return res.msg, res.err
	case <-ctx.Done():
		return types.Message{}, &StorageError{Op: "await persistence", Err: ctx.Err()}
	}
}

func (cs *ChatServer) enqueue(req *relayRequest) error {
	cs.channelsLock.Lock()
	defer cs.channelsLock.Unlock()

	if cs.closed {
		return ErrShuttingDown
	}

	id := ChannelId(req.senderId, req.receiverId)
	ch, ok := cs.channels[id]
	if !ok {
		ch = newChannel(cs, req.senderId, req.receiverId)
		cs.channels[id] = ch
		cs.stats.Incr(stats.NumActiveChannels)
		go ch.start()
	}

	select {
	case ch.queue <- req:
		return nil
	default:
		cs.log.Printf("relay queue full for channel %q", id)
		return &StorageError{Op: "enqueue", Err: fmt.Errorf("channel %s is overloaded", id)}
	}
}

// unloadChannel removes an idle channel. It refuses while requests are
// still queued so nothing enqueued under channelsLock is stranded.
func (cs *ChatServer) unloadChannel(ch *Channel) bool {
	cs.channelsLock.Lock()
	defer cs.channelsLock.Unlock()

	if len(ch.queue) > 0 || cs.closed {
		return false
	}

	if cur, ok := cs.channels[ch.id]; ok && cur == ch {
		delete(cs.channels, ch.id)
		cs.stats.Decr(stats.NumActiveChannels)
	}

	return true
}

func (cs *ChatServer) getChannel(id string) (*Channel, bool) {
	cs.channelsLock.Lock()
	defer cs.channelsLock.Unlock()

	ch, ok := cs.channels[id]
	return ch, ok
}

// Join subscribes c to the channel of senderId and receiverId. The
// connection's user must be one of the two.
func (cs *ChatServer) Join(c *Client, senderId, receiverId int) (string, error) {
	if cs.isClosed() {
		return "", ErrShuttingDown
	}
	if err := validateParticipants(senderId, receiverId); err != nil {
		return "", err
	}
	if c.user.Id != senderId && c.user.Id != receiverId {
		return "", &ValidationError{Err: ErrNotParticipant}
	}
	if err := cs.verifyParticipants(context.Background(), senderId, receiverId); err != nil {
		return "", err
	}

	channelId := ChannelId(senderId, receiverId)
	if cs.registry.Join(c, channelId) {
		cs.log.Printf("connection %s (user %d) joined %q", c.id, c.user.Id, channelId)
	}

	return channelId, nil
}

// LeaveChannel unsubscribes c from a single channel.
func (cs *ChatServer) LeaveChannel(c *Client, senderId, receiverId int) (string, error) {
	if err := validateParticipants(senderId, receiverId); err != nil {
		return "", err
	}

	channelId := ChannelId(senderId, receiverId)
	cs.registry.LeaveChannel(c, channelId)
	return channelId, nil
}

// History returns every message exchanged between userA and userB, oldest
// first. Both users must exist.
func (cs *ChatServer) History(ctx context.Context, userA, userB int) ([]types.Message, error) {
	if err := validateParticipants(userA, userB); err != nil {
		return nil, err
	}
	if err := cs.verifyParticipants(ctx, userA, userB); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cs.storeTimeout)
	defer cancel()

	dbMsgs, err := cs.db.GetMessagesBetween(ctx, userA, userB)
	if err != nil {
		return nil, &StorageError{Op: "get messages", Err: err}
	}

	msgs := make([]types.Message, 0, len(dbMsgs))
	for _, m := range dbMsgs {
		msgs = append(msgs, types.Message{
			Id:         m.Id,
			SenderId:   m.SenderId,
			ReceiverId: m.ReceiverId,
			Content:    m.Content,
			Timestamp:  m.CreatedAt.UTC(),
		})
	}

	return msgs, nil
}

// verifyParticipants checks that both users exist in the record store.
func (cs *ChatServer) verifyParticipants(ctx context.Context, userA, userB int) error {
	ctx, cancel := context.WithTimeout(ctx, cs.storeTimeout)
	defer cancel()

	for _, id := range []int{userA, userB} {
		if _, err := cs.db.GetUserById(ctx, id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return &ValidationError{Err: fmt.Errorf("%w: %d", ErrUnknownUser, id)}
			}
			return &StorageError{Op: "get user", Err: err}
		}
	}

	return nil
}

func validateParticipants(userA, userB int) error {
	if userA <= 0 || userB <= 0 || userA == userB {
		return &ValidationError{Err: ErrInvalidParticipants}
	}

	return nil
}

func (cs *ChatServer) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Err: ErrEmptyContent}
	}
	if !utf8.ValidString(content) {
		return &ValidationError{Err: ErrInvalidEncoding}
	}
	if n := utf8.RuneCountInString(content); n > cs.maxMessageLength {
		return &ValidationError{Err: fmt.Errorf("%w: %d characters, limit is %d", ErrContentTooLong, n, cs.maxMessageLength)}
	}

	return nil
}

func (cs *ChatServer) isClosed() bool {
	cs.channelsLock.Lock()
	defer cs.channelsLock.Unlock()
	return cs.closed
}

// RegisterClient tracks c until it unregisters. It fails once Shutdown
// has started stopping connections.
func (cs *ChatServer) RegisterClient(c *Client) error {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if cs.clientsClosed {
		return ErrShuttingDown
	}

	cs.clients[c] = struct{}{}
	cs.clientsWg.Add(1)
	cs.stats.Incr(stats.NumActiveClients)
	stats.Connections.Inc()
	cs.log.Printf("registered connection %s for user %d", c.id, c.user.Id)
	return nil
}

// UnregisterClient drops c from every channel. Safe to call more than once.
func (cs *ChatServer) UnregisterClient(c *Client) {
	left := cs.registry.Leave(c)

	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	if _, ok := cs.clients[c]; !ok {
		return
	}
	delete(cs.clients, c)
	cs.stats.Decr(stats.NumActiveClients)
	stats.Connections.Dec()
	cs.log.Printf("removed connection %s for user %d, left %v", c.id, c.user.Id, left)
	cs.clientsWg.Done()
}

// Shutdown stops every channel, letting each finish its queued requests,
// then closes all client connections and waits for them to unregister.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.channelsLock.Lock()
	if cs.closed {
		cs.channelsLock.Unlock()
		return nil
	}
	cs.closed = true
	channels := make([]*Channel, 0, len(cs.channels))
	for _, ch := range cs.channels {
		channels = append(channels, ch)
	}
	cs.channelsLock.Unlock()

	for _, ch := range channels {
		close(ch.exit)
	}

	for _, ch := range channels {
		select {
		case <-ch.done:
		case <-ctx.Done():
			return fmt.Errorf("wait for channel %s: %w", ch.id, ctx.Err())
		}
	}

	cs.clientsLock.Lock()
	cs.clientsClosed = true
	for c := range cs.clients {
		c.stopClient()
	}
	cs.clientsLock.Unlock()

	unregistered := make(chan struct{})
	go func() {
		cs.clientsWg.Wait()
		close(unregistered)
	}()

	select {
	case <-unregistered:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for connections to close: %w", ctx.Err())
	}
}
