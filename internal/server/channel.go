package server

import (
	"context"
	"log"
	"time"

	"github.com/npezzotti/sarthi/internal/database"
	"github.com/npezzotti/sarthi/internal/stats"
	"github.com/npezzotti/sarthi/internal/types"
)

const (
	defaultIdleChannelTimeout = 30 * time.Second
	relayQueueSize            = 256
)

type relayRequest struct {
	senderId   int
	receiverId int
	content    string
	reply      chan relayResult
}

type relayResult struct {
	msg types.Message
	err error
}

// Channel serializes persistence and fan-out for one pair of users. Each
// request is persisted and broadcast before the next one is taken, so every
// subscriber sees the channel's messages in timestamp order.
type Channel struct {
	id     string
	userA  int
	userB  int
	cs     *ChatServer
	log    *log.Logger
	queue  chan *relayRequest
	loaded bool
	// lastTimestamp is the newest timestamp persisted on this channel.
	lastTimestamp time.Time
	// killTimer unloads the channel after a period without traffic.
	killTimer *time.Timer
	exit      chan struct{}
	done      chan struct{}
}

func newChannel(cs *ChatServer, userA, userB int) *Channel {
	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}

	return &Channel{
		id:    ChannelId(lo, hi),
		userA: lo,
		userB: hi,
		cs:    cs,
		log:   cs.log,
		queue: make(chan *relayRequest, relayQueueSize),
		exit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (ch *Channel) start() {
	ch.log.Printf("starting channel %q", ch.id)
	ch.killTimer = time.NewTimer(ch.cs.idleTimeout)
	defer func() {
		ch.killTimer.Stop()
		close(ch.done)
	}()

	for {
		select {
		case req := <-ch.queue:
			ch.handleRelay(req)
			ch.resetKillTimer()
		case <-ch.killTimer.C:
			if ch.cs.unloadChannel(ch) {
				ch.log.Printf("channel %q idle, unloaded", ch.id)
				return
			}
			ch.resetKillTimer()
		case <-ch.exit:
			ch.drain()
			ch.log.Printf("channel %q exiting", ch.id)
			return
		}
	}
}

func (ch *Channel) resetKillTimer() {
	if !ch.killTimer.Stop() {
		select {
		case <-ch.killTimer.C:
		default:
		}
	}
	ch.killTimer.Reset(ch.cs.idleTimeout)
}

// drain finishes requests that were queued before shutdown so none of them
// is left without a reply.
func (ch *Channel) drain() {
	for {
		select {
		case req := <-ch.queue:
			ch.handleRelay(req)
		default:
			return
		}
	}
}

// load verifies both participants and seeds the channel clock from the
// newest stored message.
func (ch *Channel) load() error {
	if ch.loaded {
		return nil
	}

	if err := ch.cs.verifyParticipants(context.Background(), ch.userA, ch.userB); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), ch.cs.storeTimeout)
	defer cancel()

	last, err := ch.cs.db.GetLastMessageTime(ctx, ch.userA, ch.userB)
	if err != nil {
		return &StorageError{Op: "get last message time", Err: err}
	}

	ch.lastTimestamp = last
	ch.loaded = true
	return nil
}

// nextTimestamp returns a server timestamp strictly after every timestamp
// already persisted on the channel.
func (ch *Channel) nextTimestamp() time.Time {
	ts := Now()
	if !ts.After(ch.lastTimestamp) {
		ts = ch.lastTimestamp.Add(time.Millisecond)
	}

	return ts
}

func (ch *Channel) handleRelay(req *relayRequest) {
	if err := ch.load(); err != nil {
		ch.reject(req, err)
		return
	}

	createdAt := ch.nextTimestamp()

	ctx, cancel := context.WithTimeout(context.Background(), ch.cs.storeTimeout)
	start := time.Now()
	dbMsg, err := ch.cs.db.CreateMessage(ctx, database.CreateMessageParams{
		SenderId:   req.senderId,
		ReceiverId: req.receiverId,
		Content:    req.content,
		CreatedAt:  createdAt,
	})
	cancel()
	stats.PersistLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		ch.log.Printf("channel %q: save message: %v", ch.id, err)
		ch.reject(req, &StorageError{Op: "create message", Err: err})
		return
	}

	ch.lastTimestamp = createdAt
	msg := types.Message{
		Id:         dbMsg.Id,
		SenderId:   req.senderId,
		ReceiverId: req.receiverId,
		Content:    req.content,
		Timestamp:  createdAt,
	}

	stats.RelayTotal.WithLabelValues("persisted").Inc()
	ch.cs.stats.Incr(stats.NumMessagesRelayed)
	req.reply <- relayResult{msg: msg}

	ch.broadcast(ReceiveMessage(msg))
}

func (ch *Channel) reject(req *relayRequest, err error) {
	if IsValidationError(err) {
		stats.RelayTotal.WithLabelValues("invalid").Inc()
	} else {
		stats.RelayTotal.WithLabelValues("storage_error").Inc()
	}
	req.reply <- relayResult{err: err}
}

// broadcast hands msg to every current subscriber. A subscriber that cannot
// take it is logged and skipped.
func (ch *Channel) broadcast(msg *ServerMessage) {
	for _, sub := range ch.cs.registry.Subscribers(ch.id) {
		if err := sub.Deliver(msg); err != nil {
			derr := &DeliveryError{ConnId: sub.Id(), ChannelId: ch.id, Err: err}
			ch.log.Println(derr)
			stats.DeliveriesTotal.WithLabelValues("dropped").Inc()
			ch.cs.stats.Incr(stats.NumDeliveryFailures)
			continue
		}
		stats.DeliveriesTotal.WithLabelValues("queued").Inc()
	}
}
