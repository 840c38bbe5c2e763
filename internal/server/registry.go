package server

import (
	"sync"
)

// Subscriber is a live connection that can be handed channel traffic.
type Subscriber interface {
	Id() string
	Deliver(msg *ServerMessage) error
}

// ConnectionRegistry tracks which connections are subscribed to which
// channels. A pub/sub backed implementation would slot in here to fan out
// across processes.
type ConnectionRegistry interface {
	Join(sub Subscriber, channelId string) bool
	Leave(sub Subscriber) []string
	LeaveChannel(sub Subscriber, channelId string) bool
	Subscribers(channelId string) []Subscriber
}

// Registry is the in-process ConnectionRegistry. Membership lives only as
// long as the process; clients rejoin after reconnecting.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[Subscriber]struct{}
	subs     map[Subscriber]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[Subscriber]struct{}),
		subs:     make(map[Subscriber]map[string]struct{}),
	}
}

// Join subscribes sub to channelId. It reports whether sub was newly added;
// joining twice is a no-op.
func (r *Registry) Join(sub Subscriber, channelId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channelId]
	if !ok {
		members = make(map[Subscriber]struct{})
		r.channels[channelId] = members
	}
	if _, ok := members[sub]; ok {
		return false
	}
	members[sub] = struct{}{}

	joined, ok := r.subs[sub]
	if !ok {
		joined = make(map[string]struct{})
		r.subs[sub] = joined
	}
	joined[channelId] = struct{}{}

	return true
}

// Leave removes sub from every channel and returns the channels it left.
// Calling it again returns nothing.
func (r *Registry) Leave(sub Subscriber) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.subs[sub]
	if !ok {
		return nil
	}

	left := make([]string, 0, len(joined))
	for channelId := range joined {
		r.removeLocked(sub, channelId)
		left = append(left, channelId)
	}
	delete(r.subs, sub)

	return left
}

// LeaveChannel removes sub from a single channel.
func (r *Registry) LeaveChannel(sub Subscriber, channelId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined, ok := r.subs[sub]
	if !ok {
		return false
	}
	if _, ok := joined[channelId]; !ok {
		return false
	}

	r.removeLocked(sub, channelId)
	delete(joined, channelId)
	if len(joined) == 0 {
		delete(r.subs, sub)
	}

	return true
}

func (r *Registry) removeLocked(sub Subscriber, channelId string) {
	members := r.channels[channelId]
	delete(members, sub)
	if len(members) == 0 {
		delete(r.channels, channelId)
	}
}

// Subscribers returns a snapshot of the members of channelId. The slice is
// empty, not nil, when nobody has joined.
func (r *Registry) Subscribers(channelId string) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.channels[channelId]
	out := make([]Subscriber, 0, len(members))
	for sub := range members {
		out = append(out, sub)
	}

	return out
}

// Channels returns the channels sub is currently joined to.
func (r *Registry) Channels(sub Subscriber) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.subs[sub]
	out := make([]string, 0, len(joined))
	for channelId := range joined {
		out = append(out, channelId)
	}

	return out
}

// Len returns the number of channels with at least one member.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels)
}
