package repo

import (
	"taxi-realtime/internal/trip/domain"
)

// applyUpdate mutates t in place with the recognized fields of input.
// It is shared by every store so the transition rules stay identical.
func applyUpdate(t *domain.Trip, input domain.UpdateTripInput, exclusiveDriver bool) error {
	if !t.Active() {
		return domain.ErrTripCompleted
	}

	if input.Status != nil {
		if !input.Status.Valid() {
			return domain.ErrInvalidStatus
		}
		if !t.Status.CanMoveTo(*input.Status) {
			return domain.ErrInvalidStatusTransition
		}
	}

	if input.Driver != nil && exclusiveDriver && t.Driver != nil && t.Driver.ID != input.Driver.ID {
		return domain.ErrDriverConflict
	}

	if input.PickUpAddress != nil {
		t.PickUpAddress = *input.PickUpAddress
	}
	if input.DropOffAddress != nil {
		t.DropOffAddress = *input.DropOffAddress
	}
	if input.Status != nil {
		t.Status = *input.Status
	}
	if input.Driver != nil {
		d := *input.Driver
		t.Driver = &d
	}
	return nil
}
