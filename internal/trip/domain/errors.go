package domain

import "errors"

var (
	ErrValidation              = errors.New("invalid payload")
	ErrForbidden               = errors.New("forbidden action")
	ErrNotFound                = errors.New("trip not found")
	ErrInvalidStatus           = errors.New("invalid trip status")
	ErrInvalidStatusTransition = errors.New("trip status cannot move backwards")
	ErrTripCompleted           = errors.New("trip is already completed")
	ErrDriverConflict          = errors.New("trip is assigned to another driver")
	ErrUnauthenticated         = errors.New("unauthenticated")
)
