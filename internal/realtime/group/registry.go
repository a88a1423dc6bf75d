// Package group maps topics to the live connections subscribed to them.
package group

import (
	"sync"
)

// Drivers is the broadcast topic every connected driver joins.
const Drivers = "drivers"

// Member is a subscriber handle. Send must not block; it reports whether
// the message was accepted for delivery. Forget is called after the
// registry dropped a topic the member was joined to.
type Member interface {
	ID() string
	Send(message []byte) bool
	Forget(topic string)
}

// Registry is safe for concurrent use. A single instance is created at
// process start and shared by every connection.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[string]Member
}

func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[string]map[string]Member),
	}
}

func (r *Registry) Join(topic string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.topics[topic]
	if !ok {
		members = make(map[string]Member)
		r.topics[topic] = members
	}
	members[m.ID()] = m
}

// Leave is a no-op when m is not joined to topic. Empty topics are dropped.
func (r *Registry) Leave(topic string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.topics[topic]
	if !ok {
		return
	}
	delete(members, m.ID())
	if len(members) == 0 {
		delete(r.topics, topic)
	}
}

// Publish hands message to every member currently joined to topic and
// returns how many accepted it. Members are snapshotted first so Send runs
// without the registry lock held.
func (r *Registry) Publish(topic string, message []byte) int {
	r.mu.RLock()
	members := make([]Member, 0, len(r.topics[topic]))
	for _, m := range r.topics[topic] {
		members = append(members, m)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, m := range members {
		if m.Send(message) {
			delivered++
		}
	}
	return delivered
}

// Drop removes topic and unsubscribes every member from it, returning how
// many were joined. Members are told outside the registry lock.
func (r *Registry) Drop(topic string) int {
	r.mu.Lock()
	members := r.topics[topic]
	delete(r.topics, topic)
	r.mu.Unlock()

	for _, m := range members {
		m.Forget(topic)
	}
	return len(members)
}

func (r *Registry) Members(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

func (r *Registry) Has(topic string, m Member) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic][m.ID()]
	return ok
}

// Topics returns the number of topics with at least one member.
func (r *Registry) Topics() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
