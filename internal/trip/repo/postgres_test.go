package repo

import (
	"context"
	"os"
	"testing"
	"time"

	"taxi-realtime/internal/trip/domain"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPostgres connects to TRIP_TEST_DATABASE_URL and skips otherwise.
func newTestPostgres(t *testing.T, exclusive bool) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TRIP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TRIP_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool, exclusive)
	require.NoError(t, store.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE trip_riders, trips`)
	require.NoError(t, err)
	return store
}

func TestPostgresTimestampsFitColumnPrecision(t *testing.T) {
	s := NewPostgresStore(nil, true)
	for i := 0; i < 100; i++ {
		now := s.now()
		assert.Zero(t, now.Nanosecond()%int(time.Microsecond))
		assert.Equal(t, time.UTC, now.Location())
	}
}

func TestPostgresStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgres(t, true)

	trip, err := s.Create(ctx, domain.CreateTripInput{PickUpAddress: "A", DropOffAddress: "B", Rider: rider})
	require.NoError(t, err)

	got, err := s.Get(ctx, trip.NK)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRequested, got.Status)
	assert.Nil(t, got.Driver)
	require.Len(t, got.Riders, 1)
	assert.Equal(t, rider.ID, got.Riders[0].ID)

	assert.True(t, trip.Created.Equal(got.Created), "created %s, stored %s", trip.Created, got.Created)
	assert.Equal(t, trip.Created, got.Created.UTC())

	updated, err := s.Update(ctx, trip.NK, domain.UpdateTripInput{
		Status: statusPtr(domain.StatusStarted),
		Driver: &driver,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, updated.Status)
	assert.Equal(t, driver.ID, updated.Driver.ID)
	assert.Len(t, updated.Riders, 1)

	reread, err := s.Get(ctx, trip.NK)
	require.NoError(t, err)
	assert.Equal(t, updated.Updated, reread.Updated.UTC())

	other := domain.User{ID: "driver-2", Role: domain.RoleDriver}
	_, err = s.Update(ctx, trip.NK, domain.UpdateTripInput{Driver: &other})
	require.ErrorIs(t, err, domain.ErrDriverConflict)

	_, err = s.Update(ctx, trip.NK, domain.UpdateTripInput{Status: statusPtr(domain.StatusRequested)})
	require.ErrorIs(t, err, domain.ErrInvalidStatusTransition)

	_, err = s.Update(ctx, trip.NK, domain.UpdateTripInput{Status: statusPtr(domain.StatusCompleted)})
	require.NoError(t, err)
	_, err = s.Update(ctx, trip.NK, domain.UpdateTripInput{PickUpAddress: strPtr("Z")})
	require.ErrorIs(t, err, domain.ErrTripCompleted)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStoreList(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgres(t, true)

	first, err := s.Create(ctx, domain.CreateTripInput{PickUpAddress: "A", DropOffAddress: "B", Rider: rider})
	require.NoError(t, err)
	second, err := s.Create(ctx, domain.CreateTripInput{PickUpAddress: "C", DropOffAddress: "D", Rider: rider})
	require.NoError(t, err)
	_, err = s.Update(ctx, second.NK, domain.UpdateTripInput{Status: statusPtr(domain.StatusCompleted), Driver: &driver})
	require.NoError(t, err)

	active, err := s.List(ctx, domain.TripFilter{RiderID: rider.ID, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, first.NK, active[0].NK)

	completed, err := s.List(ctx, domain.TripFilter{Status: statusPtr(domain.StatusCompleted)})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, second.NK, completed[0].NK)

	byDriver, err := s.List(ctx, domain.TripFilter{DriverID: driver.ID, ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, byDriver)
}
