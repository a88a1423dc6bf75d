package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"taxi-realtime/internal/shared/util"
	"taxi-realtime/internal/trip/domain"
)

type Handler struct {
	store  domain.TripRepository
	logger *util.Logger
}

func NewHandler(store domain.TripRepository, logger *util.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// ListTripsHandler serves GET /api/trips with an optional ?status= filter.
// ?mine=true narrows the list to trips the caller rides in or drives.
func (h *Handler) ListTripsHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodGet {
		util.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var filter domain.TripFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseStatus(strings.ToUpper(raw))
		if err != nil {
			h.logger.Warn("ListTripsHandler", fmt.Sprintf("bad status filter %q", raw))
			util.ErrResponseInJson(w, fmt.Errorf("%w: %v", domain.ErrValidation, err))
			return
		}
		filter.Status = &status
	}
	if r.URL.Query().Get("mine") == "true" {
		user, ok := UserFromContext(r.Context())
		if !ok {
			util.WriteJSONError(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		if user.Role == domain.RoleDriver {
			filter.DriverID = user.ID
		} else {
			filter.RiderID = user.ID
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	trips, err := h.store.List(ctx, filter)
	if err != nil {
		h.logger.Error("ListTripsHandler", err)
		util.ErrResponseInJson(w, err)
		return
	}

	resp := TripListResponse{Count: len(trips), Trips: make([]domain.TripView, 0, len(trips))}
	for i := range trips {
		resp.Trips = append(resp.Trips, domain.NewTripView(&trips[i]))
	}

	util.ResponseInJson(w, http.StatusOK, resp)
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}

// GetTripHandler serves GET /api/trips/{nk}.
func (h *Handler) GetTripHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodGet {
		util.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	nk := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/trips/"), "/")
	if nk == "" || strings.Contains(nk, "/") {
		util.WriteJSONError(w, "invalid trip key", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	trip, err := h.store.Get(ctx, nk)
	if err != nil {
		user, _ := UserFromContext(r.Context())
		h.logger.Warn("GetTripHandler", fmt.Sprintf("lookup of %s failed [user_id=%s]: %v", nk, user.ID, err))
		util.ErrResponseInJson(w, err)
		return
	}

	util.ResponseInJson(w, http.StatusOK, domain.NewTripView(trip))
	h.logger.HTTP(http.StatusOK, time.Since(start), r.RemoteAddr, r.Method, r.URL.Path)
}
