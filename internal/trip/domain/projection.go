package domain

import (
	"encoding/json"
	"time"
)

// UserView is the public projection of a user. Credentials never appear here.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type TripView struct {
	NK             string     `json:"nk"`
	Created        time.Time  `json:"created"`
	Updated        time.Time  `json:"updated"`
	PickUpAddress  string     `json:"pick_up_address"`
	DropOffAddress string     `json:"drop_off_address"`
	Status         Status     `json:"status"`
	Driver         *UserView  `json:"driver"`
	Riders         []UserView `json:"riders"`
}

func NewUserView(u User) UserView {
	return UserView{ID: u.ID, Username: u.Username}
}

func NewTripView(t *Trip) TripView {
	v := TripView{
		NK:             t.NK,
		Created:        t.Created.UTC(),
		Updated:        t.Updated.UTC(),
		PickUpAddress:  t.PickUpAddress,
		DropOffAddress: t.DropOffAddress,
		Status:         t.Status,
		Riders:         make([]UserView, 0, len(t.Riders)),
	}
	if t.Driver != nil {
		d := NewUserView(*t.Driver)
		v.Driver = &d
	}
	for _, r := range t.Riders {
		v.Riders = append(v.Riders, NewUserView(r))
	}
	return v
}

// Serialize renders the wire form of a trip. Output depends only on t.
func Serialize(t *Trip) ([]byte, error) {
	return json.Marshal(NewTripView(t))
}
