// Package session holds the per-connection state of a realtime client:
// who it is, which topics it joined, and its outbound queue.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"taxi-realtime/internal/realtime/group"
	"taxi-realtime/internal/trip/domain"

	"github.com/google/uuid"
)

type State int

const (
	Connecting State = iota
	Authenticated
	Subscribed
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Authenticated:
		return "authenticated"
	case Subscribed:
		return "subscribed"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// TripLister is the read side of the trip store a session needs to rebuild
// its subscriptions on connect.
type TripLister interface {
	List(ctx context.Context, filter domain.TripFilter) ([]domain.Trip, error)
}

type Session struct {
	id       string
	registry *group.Registry

	mu     sync.Mutex
	state  State
	user   domain.User
	topics map[string]struct{}

	outMu     sync.Mutex
	out       chan []byte
	outClosed bool
	dropped   atomic.Int64
}

func New(registry *group.Registry, buffer int) *Session {
	if buffer < 1 {
		buffer = 1
	}
	return &Session{
		id:       uuid.NewString(),
		registry: registry,
		state:    Connecting,
		topics:   make(map[string]struct{}),
		out:      make(chan []byte, buffer),
	}
}

var _ group.Member = (*Session)(nil)

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) User() domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Authenticate moves a connecting session to Authenticated. The user must
// hold the role the endpoint serves; otherwise the session is rejected.
func (s *Session) Authenticate(user domain.User, endpoint domain.Role) error {
	s.mu.Lock()
	if s.state != Connecting {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("authenticate in state %s: %w", st, domain.ErrUnauthenticated)
	}
	if user.ID == "" || user.Role != endpoint {
		s.mu.Unlock()
		s.Close()
		return fmt.Errorf("role %q cannot use the %s endpoint: %w", user.Role, endpoint, domain.ErrUnauthenticated)
	}
	s.user = user
	s.state = Authenticated
	s.mu.Unlock()
	return nil
}

// Subscribe computes the initial topic set from the user's active trips,
// as rider and as driver, plus the drivers broadcast for drivers.
func (s *Session) Subscribe(ctx context.Context, trips TripLister) error {
	s.mu.Lock()
	if s.state != Authenticated {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("subscribe in state %s", st)
	}
	user := s.user
	s.mu.Unlock()

	asRider, err := trips.List(ctx, domain.TripFilter{RiderID: user.ID, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("list rider trips: %w", err)
	}
	asDriver, err := trips.List(ctx, domain.TripFilter{DriverID: user.ID, ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("list driver trips: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Authenticated {
		// closed while the store was queried
		return fmt.Errorf("subscribe in state %s", s.state)
	}
	for _, t := range asRider {
		s.joinLocked(t.NK)
	}
	for _, t := range asDriver {
		s.joinLocked(t.NK)
	}
	if user.Role == domain.RoleDriver {
		s.joinLocked(group.Drivers)
	}
	s.state = Subscribed
	return nil
}

// Join adds the session to topic. It reports false, and does nothing, unless
// the session is Subscribed.
func (s *Session) Join(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Subscribed {
		return false
	}
	s.joinLocked(topic)
	return true
}

func (s *Session) joinLocked(topic string) {
	if _, ok := s.topics[topic]; ok {
		return
	}
	s.registry.Join(topic, s)
	s.topics[topic] = struct{}{}
}

func (s *Session) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Close leaves every joined topic and shuts the outbox. Only the first call
// does anything; it reports whether this call performed the close.
func (s *Session) Close() bool {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return false
	}
	s.state = Closed
	topics := s.topics
	s.topics = make(map[string]struct{})
	s.mu.Unlock()

	s.outMu.Lock()
	s.outClosed = true
	close(s.out)
	s.outMu.Unlock()

	for t := range topics {
		s.registry.Leave(t, s)
	}
	return true
}

// Forget drops topic from the session's own set. The registry calls it after
// it removed the session from topic.
func (s *Session) Forget(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, topic)
}

// Send queues message for the write pump without blocking. Messages are
// dropped when the queue is full or the session is closed.
func (s *Session) Send(message []byte) bool {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.outClosed {
		return false
	}
	select {
	case s.out <- message:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Outbox is drained by the transport; it is closed by Close.
func (s *Session) Outbox() <-chan []byte { return s.out }

func (s *Session) Dropped() int64 { return s.dropped.Load() }
