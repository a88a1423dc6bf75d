package api

import "taxi-realtime/internal/trip/domain"

// AuthMessage is the first frame of a connection that did not send an
// Authorization header on upgrade.
type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type WSResponse struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type TripListResponse struct {
	Count int               `json:"count"`
	Trips []domain.TripView `json:"trips"`
}
