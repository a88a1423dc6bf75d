package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taxi-realtime/internal/trip/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	db              *pgxpool.Pool
	exclusiveDriver bool
}

func NewPostgresStore(db *pgxpool.Pool, exclusiveDriver bool) *PostgresStore {
	return &PostgresStore{db: db, exclusiveDriver: exclusiveDriver}
}

var _ domain.TripRepository = (*PostgresStore)(nil)

// EnsureSchema creates the trip tables when they are missing.
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure trip schema: %w", err)
	}
	return nil
}

// now matches the microsecond precision of timestamptz, so a returned trip
// equals the same trip read back.
func (r *PostgresStore) now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

const tripColumns = `nk, created_at, updated_at, pick_up_address, drop_off_address, status, driver_id, driver_username`

func (r *PostgresStore) Create(ctx context.Context, input domain.CreateTripInput) (*domain.Trip, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := r.now()
	nk := NewNaturalKey(now, input.PickUpAddress, input.DropOffAddress)

	_, err = tx.Exec(ctx, `
		INSERT INTO trips (nk, created_at, updated_at, pick_up_address, drop_off_address, status)
		VALUES ($1, $2, $2, $3, $4, $5)
	`, nk, now, input.PickUpAddress, input.DropOffAddress, string(domain.StatusRequested))
	if err != nil {
		return nil, fmt.Errorf("insert trip failed: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trip_riders (trip_nk, user_id, username)
		VALUES ($1, $2, $3)
	`, nk, input.Rider.ID, input.Rider.Username)
	if err != nil {
		return nil, fmt.Errorf("insert trip rider failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &domain.Trip{
		NK:             nk,
		Created:        now,
		Updated:        now,
		PickUpAddress:  input.PickUpAddress,
		DropOffAddress: input.DropOffAddress,
		Status:         domain.StatusRequested,
		Riders:         []domain.User{input.Rider},
	}, nil
}

func (r *PostgresStore) Get(ctx context.Context, nk string) (*domain.Trip, error) {
	return r.get(ctx, r.db, nk, false)
}

// Update locks the trip row for the duration of the transaction, so
// concurrent updates of one trip are serialized by the database.
func (r *PostgresStore) Update(ctx context.Context, nk string, input domain.UpdateTripInput) (*domain.Trip, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	trip, err := r.get(ctx, tx, nk, true)
	if err != nil {
		return nil, err
	}
	if err := applyUpdate(trip, input, r.exclusiveDriver); err != nil {
		return nil, err
	}
	trip.Updated = r.now()

	var driverID, driverUsername *string
	if trip.Driver != nil {
		driverID, driverUsername = &trip.Driver.ID, &trip.Driver.Username
	}

	_, err = tx.Exec(ctx, `
		UPDATE trips
		SET pick_up_address = $1,
		    drop_off_address = $2,
		    status = $3,
		    driver_id = $4,
		    driver_username = $5,
		    updated_at = $6
		WHERE nk = $7
	`, trip.PickUpAddress, trip.DropOffAddress, string(trip.Status), driverID, driverUsername, trip.Updated, nk)
	if err != nil {
		return nil, fmt.Errorf("update trip failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return trip, nil
}

func (r *PostgresStore) List(ctx context.Context, filter domain.TripFilter) ([]domain.Trip, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.ActiveOnly {
		args = append(args, string(domain.StatusCompleted))
		where = append(where, fmt.Sprintf("status <> $%d", len(args)))
	}
	if filter.DriverID != "" {
		args = append(args, filter.DriverID)
		where = append(where, fmt.Sprintf("driver_id = $%d", len(args)))
	}
	if filter.RiderID != "" {
		args = append(args, filter.RiderID)
		where = append(where, fmt.Sprintf("nk IN (SELECT trip_nk FROM trip_riders WHERE user_id = $%d)", len(args)))
	}

	query := `SELECT ` + tripColumns + ` FROM trips`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, nk`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trips failed: %w", err)
	}
	defer rows.Close()

	var tripRows []TripRow
	for rows.Next() {
		var row TripRow
		if err := rows.Scan(&row.NK, &row.CreatedAt, &row.UpdatedAt, &row.PickUpAddress,
			&row.DropOffAddress, &row.Status, &row.DriverID, &row.DriverUsername); err != nil {
			return nil, err
		}
		tripRows = append(tripRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tripRows) == 0 {
		return []domain.Trip{}, nil
	}

	nks := make([]string, 0, len(tripRows))
	for _, row := range tripRows {
		nks = append(nks, row.NK)
	}
	riders, err := r.riders(ctx, r.db, nks)
	if err != nil {
		return nil, err
	}

	trips := make([]domain.Trip, 0, len(tripRows))
	for _, row := range tripRows {
		trips = append(trips, *row.toDomain(riders[row.NK]))
	}
	return trips, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PostgresStore) get(ctx context.Context, q querier, nk string, forUpdate bool) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE nk = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row TripRow
	err := q.QueryRow(ctx, query, nk).Scan(&row.NK, &row.CreatedAt, &row.UpdatedAt, &row.PickUpAddress,
		&row.DropOffAddress, &row.Status, &row.DriverID, &row.DriverUsername)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	riders, err := r.riders(ctx, q, []string{nk})
	if err != nil {
		return nil, err
	}
	return row.toDomain(riders[nk]), nil
}

func (r *PostgresStore) riders(ctx context.Context, q querier, nks []string) (map[string][]domain.User, error) {
	rows, err := q.Query(ctx, `
		SELECT trip_nk, user_id, username
		FROM trip_riders
		WHERE trip_nk = ANY($1)
		ORDER BY added_at, user_id
	`, nks)
	if err != nil {
		return nil, fmt.Errorf("load trip riders failed: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.User, len(nks))
	for rows.Next() {
		var row RiderRow
		if err := rows.Scan(&row.TripNK, &row.UserID, &row.Username); err != nil {
			return nil, err
		}
		out[row.TripNK] = append(out[row.TripNK], domain.User{ID: row.UserID, Username: row.Username, Role: domain.RoleRider})
	}
	return out, rows.Err()
}
