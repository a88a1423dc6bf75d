package apperrors

import (
	"errors"
	"net/http"

	"taxi-realtime/internal/trip/domain"
)

// Codes sent to websocket clients in error replies.
const (
	CodeValidation = "validation_failed"
	CodeForbidden  = "forbidden"
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeAuth       = "auth_failed"
	CodeInternal   = "internal"
)

func Code(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidStatus):
		return CodeValidation
	case errors.Is(err, domain.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrTripCompleted),
		errors.Is(err, domain.ErrDriverConflict):
		return CodeConflict
	case errors.Is(err, domain.ErrUnauthenticated):
		return CodeAuth
	}
	return CodeInternal
}

func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeAuth:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether err was caused by the caller rather than
// by the process.
func IsClientError(err error) bool {
	return Code(err) != CodeInternal
}
