package session_test

import (
	"context"
	"errors"
	"testing"

	"taxi-realtime/internal/realtime/group"
	"taxi-realtime/internal/realtime/session"
	"taxi-realtime/internal/trip/domain"
	"taxi-realtime/internal/trip/repo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	rider  = domain.User{ID: "u-rider", Username: "rider@example.com", Role: domain.RoleRider}
	driver = domain.User{ID: "u-driver", Username: "driver@example.com", Role: domain.RoleDriver}
)

type failingLister struct{}

func (failingLister) List(context.Context, domain.TripFilter) ([]domain.Trip, error) {
	return nil, errors.New("store down")
}

func drain(s *session.Session) []string {
	var out []string
	for {
		select {
		case m, ok := <-s.Outbox():
			if !ok {
				return out
			}
			out = append(out, string(m))
		default:
			return out
		}
	}
}

func TestLifecycle(t *testing.T) {
	reg := group.NewRegistry()
	store := repo.NewMemoryStore(true)
	s := session.New(reg, 8)

	assert.Equal(t, session.Connecting, s.State())
	assert.False(t, s.Join("early"), "join before subscribe must be ignored")

	require.NoError(t, s.Authenticate(rider, domain.RoleRider))
	assert.Equal(t, session.Authenticated, s.State())

	require.NoError(t, s.Subscribe(context.Background(), store))
	assert.Equal(t, session.Subscribed, s.State())
	assert.Empty(t, s.Topics(), "rider without trips joins nothing")

	assert.True(t, s.Close())
	assert.False(t, s.Close(), "second close is a no-op")
	assert.Equal(t, session.Closed, s.State())

	_, open := <-s.Outbox()
	assert.False(t, open, "outbox is closed")
}

func TestAuthenticateRejectsWrongRole(t *testing.T) {
	s := session.New(group.NewRegistry(), 8)

	err := s.Authenticate(rider, domain.RoleDriver)
	require.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, session.Closed, s.State())

	err = s.Subscribe(context.Background(), repo.NewMemoryStore(true))
	assert.Error(t, err, "a rejected session never reaches Subscribed")
}

func TestAuthenticateOnlyOnce(t *testing.T) {
	s := session.New(group.NewRegistry(), 8)
	require.NoError(t, s.Authenticate(rider, domain.RoleRider))
	assert.ErrorIs(t, s.Authenticate(rider, domain.RoleRider), domain.ErrUnauthenticated)
}

func TestSubscribeJoinsActiveTripsAsRiderAndDriver(t *testing.T) {
	ctx := context.Background()
	reg := group.NewRegistry()
	store := repo.NewMemoryStore(true)

	// The connecting user rides in one trip and drives another.
	user := domain.User{ID: "u-both", Username: "both@example.com", Role: domain.RoleDriver}

	ridden, err := store.Create(ctx, domain.CreateTripInput{PickUpAddress: "A", DropOffAddress: "B", Rider: user})
	require.NoError(t, err)

	driven, err := store.Create(ctx, domain.CreateTripInput{PickUpAddress: "C", DropOffAddress: "D", Rider: rider})
	require.NoError(t, err)
	_, err = store.Update(ctx, driven.NK, domain.UpdateTripInput{Driver: &user})
	require.NoError(t, err)

	done, err := store.Create(ctx, domain.CreateTripInput{PickUpAddress: "E", DropOffAddress: "F", Rider: user})
	require.NoError(t, err)
	completed := domain.StatusCompleted
	_, err = store.Update(ctx, done.NK, domain.UpdateTripInput{Status: &completed})
	require.NoError(t, err)

	other, err := store.Create(ctx, domain.CreateTripInput{PickUpAddress: "G", DropOffAddress: "H", Rider: rider})
	require.NoError(t, err)

	s := session.New(reg, 8)
	require.NoError(t, s.Authenticate(user, domain.RoleDriver))
	require.NoError(t, s.Subscribe(ctx, store))

	assert.ElementsMatch(t, []string{ridden.NK, driven.NK, group.Drivers}, s.Topics())

	reg.Publish(ridden.NK, []byte("ridden"))
	reg.Publish(driven.NK, []byte("driven"))
	reg.Publish(other.NK, []byte("other"))
	reg.Publish(done.NK, []byte("done"))

	assert.Equal(t, []string{"ridden", "driven"}, drain(s))
}

func TestSubscribeSurfacesStoreErrors(t *testing.T) {
	s := session.New(group.NewRegistry(), 8)
	require.NoError(t, s.Authenticate(rider, domain.RoleRider))

	err := s.Subscribe(context.Background(), failingLister{})
	require.Error(t, err)
	assert.Equal(t, session.Authenticated, s.State())
}

func TestCloseLeavesEveryTopic(t *testing.T) {
	reg := group.NewRegistry()
	s := session.New(reg, 8)
	require.NoError(t, s.Authenticate(driver, domain.RoleDriver))
	require.NoError(t, s.Subscribe(context.Background(), repo.NewMemoryStore(true)))
	require.True(t, s.Join("trip-1"))

	require.True(t, reg.Has("trip-1", s))
	require.True(t, reg.Has(group.Drivers, s))

	s.Close()

	assert.False(t, reg.Has("trip-1", s))
	assert.False(t, reg.Has(group.Drivers, s))
	assert.Equal(t, 0, reg.Publish("trip-1", []byte("late")))
	assert.False(t, s.Send([]byte("late")))
	assert.False(t, s.Join("trip-2"))
	assert.Equal(t, 0, reg.Topics())
}

func TestSendDropsWhenOutboxIsFull(t *testing.T) {
	s := session.New(group.NewRegistry(), 1)

	assert.True(t, s.Send([]byte("first")))
	assert.False(t, s.Send([]byte("second")))
	assert.EqualValues(t, 1, s.Dropped())
	assert.Equal(t, []string{"first"}, drain(s))
}

func TestDroppedTopicIsForgotten(t *testing.T) {
	reg := group.NewRegistry()
	s := session.New(reg, 8)
	require.NoError(t, s.Authenticate(driver, domain.RoleDriver))
	require.NoError(t, s.Subscribe(context.Background(), repo.NewMemoryStore(true)))
	require.True(t, s.Join("trip-1"))

	assert.Equal(t, 1, reg.Drop("trip-1"))

	assert.Equal(t, []string{group.Drivers}, s.Topics())
	assert.False(t, reg.Has("trip-1", s))

	s.Close()
	assert.Equal(t, 0, reg.Topics())
}
