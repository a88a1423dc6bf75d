package app

import (
	"taxi-realtime/internal/trip/domain"
)

// Inbound message types. A message without "type" is classified by shape:
// one carrying "nk" is an update, anything else a create.
const (
	TypeCreateTrip = "create_trip"
	TypeUpdateTrip = "update_trip"
)

type CreateTripMessage struct {
	Type           string           `json:"type"`
	PickUpAddress  string           `json:"pick_up_address" validate:"required,max=255"`
	DropOffAddress string           `json:"drop_off_address" validate:"required,max=255"`
	Rider          *domain.UserView `json:"rider"`
}

// UpdateTripMessage accepts the full trip projection as well; fields the
// router does not recognize (id, created, riders, ...) are ignored.
type UpdateTripMessage struct {
	Type           string           `json:"type"`
	NK             string           `json:"nk" validate:"required,max=64"`
	PickUpAddress  *string          `json:"pick_up_address" validate:"omitempty,min=1,max=255"`
	DropOffAddress *string          `json:"drop_off_address" validate:"omitempty,min=1,max=255"`
	Status         *string          `json:"status" validate:"omitempty,oneof=REQUESTED STARTED IN_PROGRESS COMPLETED"`
	Driver         *domain.UserView `json:"driver"`
}

type ErrorReply struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
