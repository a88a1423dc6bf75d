package domain

import "time"

type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusStarted    Status = "STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

var statusRank = map[Status]int{
	StatusRequested:  0,
	StatusStarted:    1,
	StatusInProgress: 2,
	StatusCompleted:  3,
}

// Valid reports whether s is one of the enumerated trip statuses.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanMoveTo reports whether a trip in status s may be moved to next.
// Progression is monotonic: staying put or moving forward is allowed.
func (s Status) CanMoveTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

func (r Role) Valid() bool {
	return r == RoleRider || r == RoleDriver
}

// User is a reference to an identity owned by the auth collaborator.
type User struct {
	ID       string
	Username string
	Role     Role
}

type Trip struct {
	NK             string
	Created        time.Time
	Updated        time.Time
	PickUpAddress  string
	DropOffAddress string
	Status         Status
	Driver         *User
	Riders         []User
}

// Active reports whether the trip still produces notifications.
func (t *Trip) Active() bool {
	return t.Status != StatusCompleted
}

func (t *Trip) HasRider(userID string) bool {
	for _, r := range t.Riders {
		if r.ID == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices with a store.
func (t *Trip) Clone() *Trip {
	c := *t
	if t.Driver != nil {
		d := *t.Driver
		c.Driver = &d
	}
	c.Riders = append([]User(nil), t.Riders...)
	return &c
}

type CreateTripInput struct {
	PickUpAddress  string
	DropOffAddress string
	Rider          User
}

// UpdateTripInput carries a partial update. Nil fields are left untouched.
// Riders are fixed when the trip is created.
type UpdateTripInput struct {
	PickUpAddress  *string
	DropOffAddress *string
	Status         *Status
	Driver         *User
}

type TripFilter struct {
	Status     *Status
	RiderID    string
	DriverID   string
	ActiveOnly bool
}

// Match reports whether t satisfies every criterion set on f.
func (f TripFilter) Match(t *Trip) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.ActiveOnly && !t.Active() {
		return false
	}
	if f.RiderID != "" && !t.HasRider(f.RiderID) {
		return false
	}
	if f.DriverID != "" && (t.Driver == nil || t.Driver.ID != f.DriverID) {
		return false
	}
	return true
}

// TripEvent is emitted after every successful mutation.
type TripEvent struct {
	Type      string    `json:"type"`
	Trip      TripView  `json:"trip"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventTripCreated = "trip.created"
	EventTripUpdated = "trip.updated"
)
