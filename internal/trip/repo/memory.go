package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taxi-realtime/internal/trip/domain"
)

type MemoryStore struct {
	mu              sync.RWMutex
	trips           map[string]*domain.Trip
	order           []string
	exclusiveDriver bool
	now             func() time.Time
}

func NewMemoryStore(exclusiveDriver bool) *MemoryStore {
	return &MemoryStore{
		trips:           make(map[string]*domain.Trip),
		exclusiveDriver: exclusiveDriver,
		now:             time.Now,
	}
}

var _ domain.TripRepository = (*MemoryStore)(nil)

func (s *MemoryStore) Create(ctx context.Context, input domain.CreateTripInput) (*domain.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	trip := &domain.Trip{
		NK:             NewNaturalKey(now, input.PickUpAddress, input.DropOffAddress),
		Created:        now,
		Updated:        now,
		PickUpAddress:  input.PickUpAddress,
		DropOffAddress: input.DropOffAddress,
		Status:         domain.StatusRequested,
		Riders:         []domain.User{input.Rider},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trips[trip.NK]; exists {
		return nil, fmt.Errorf("natural key collision for %s", trip.NK)
	}
	s.trips[trip.NK] = trip
	s.order = append(s.order, trip.NK)
	return trip.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, nk string) (*domain.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.trips[nk]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return trip.Clone(), nil
}

// Update is linearizable per trip: the whole read-check-write runs under the
// store lock, and a failed check leaves the stored trip untouched.
func (s *MemoryStore) Update(ctx context.Context, nk string, input domain.UpdateTripInput) (*domain.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.trips[nk]
	if !ok {
		return nil, domain.ErrNotFound
	}

	next := stored.Clone()
	if err := applyUpdate(next, input, s.exclusiveDriver); err != nil {
		return nil, err
	}
	next.Updated = s.now()
	s.trips[nk] = next
	return next.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, filter domain.TripFilter) ([]domain.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// order is creation order
	out := make([]domain.Trip, 0, len(s.trips))
	for _, nk := range s.order {
		if t := s.trips[nk]; filter.Match(t) {
			out = append(out, *t.Clone())
		}
	}
	return out, nil
}
