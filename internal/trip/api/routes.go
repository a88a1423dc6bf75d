package api

import (
	"net/http"

	"taxi-realtime/internal/shared/middleware"
)

// RegisterRoutes mounts the websocket endpoints and the trip read API.
// health is mounted as /health when non-nil.
func (h *Handler) RegisterRoutes(g *Gateway, auth Authenticator, health http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws/riders", g.RiderWSHandler)
	mux.HandleFunc("/ws/drivers", g.DriverWSHandler)

	mux.Handle("/api/trips", AuthMiddleware(auth)(http.HandlerFunc(h.ListTripsHandler)))
	mux.Handle("/api/trips/", AuthMiddleware(auth)(http.HandlerFunc(h.GetTripHandler)))

	if health != nil {
		mux.Handle("/health", health)
	}
	return middleware.RequestID(mux)
}
