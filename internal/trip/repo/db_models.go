package repo

import (
	"time"

	"taxi-realtime/internal/trip/domain"
)

type TripRow struct {
	NK             string    `db:"nk"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	PickUpAddress  string    `db:"pick_up_address"`
	DropOffAddress string    `db:"drop_off_address"`
	Status         string    `db:"status"`
	DriverID       *string   `db:"driver_id"`
	DriverUsername *string   `db:"driver_username"`
}

type RiderRow struct {
	TripNK   string `db:"trip_nk"`
	UserID   string `db:"user_id"`
	Username string `db:"username"`
}

func (r TripRow) toDomain(riders []domain.User) *domain.Trip {
	t := &domain.Trip{
		NK:             r.NK,
		Created:        r.CreatedAt,
		Updated:        r.UpdatedAt,
		PickUpAddress:  r.PickUpAddress,
		DropOffAddress: r.DropOffAddress,
		Status:         domain.Status(r.Status),
		Riders:         riders,
	}
	if r.DriverID != nil {
		d := domain.User{ID: *r.DriverID, Role: domain.RoleDriver}
		if r.DriverUsername != nil {
			d.Username = *r.DriverUsername
		}
		t.Driver = &d
	}
	return t
}

const Schema = `
CREATE TABLE IF NOT EXISTS trips (
    nk               VARCHAR(32) PRIMARY KEY,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    pick_up_address  VARCHAR(255) NOT NULL,
    drop_off_address VARCHAR(255) NOT NULL,
    status           VARCHAR(20) NOT NULL DEFAULT 'REQUESTED',
    driver_id        TEXT,
    driver_username  TEXT
);
CREATE INDEX IF NOT EXISTS trips_status_idx ON trips (status);
CREATE INDEX IF NOT EXISTS trips_driver_idx ON trips (driver_id);

CREATE TABLE IF NOT EXISTS trip_riders (
    trip_nk  VARCHAR(32) NOT NULL REFERENCES trips (nk),
    user_id  TEXT NOT NULL,
    username TEXT NOT NULL,
    added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (trip_nk, user_id)
);
CREATE INDEX IF NOT EXISTS trip_riders_user_idx ON trip_riders (user_id);
`
