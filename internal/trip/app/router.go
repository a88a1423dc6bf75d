package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taxi-realtime/internal/realtime/group"
	"taxi-realtime/internal/realtime/session"
	"taxi-realtime/internal/shared/apperrors"
	"taxi-realtime/internal/shared/util"
	"taxi-realtime/internal/trip/domain"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

// Router applies inbound trip messages and decides which topics hear
// about the result.
type Router struct {
	store     domain.TripRepository
	registry  *group.Registry
	publisher domain.Publisher
	validate  *validator.Validate
	logger    *util.Logger
}

// NewRouter wires the router. publisher may be nil when trip events are not
// forwarded outside the process.
func NewRouter(store domain.TripRepository, registry *group.Registry, publisher domain.Publisher, logger *util.Logger) *Router {
	return &Router{
		store:     store,
		registry:  registry,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Handle processes one inbound message from s. Any failure leaves the store
// and every topic untouched; the caller alone gets an error reply.
func (r *Router) Handle(ctx context.Context, s *session.Session, raw []byte) error {
	var err error
	switch kind := classify(raw); kind {
	case TypeCreateTrip:
		_, err = r.Create(ctx, s, raw)
	case TypeUpdateTrip:
		_, err = r.Update(ctx, s, raw)
	case "":
		err = fmt.Errorf("%w: message must be a JSON object", domain.ErrValidation)
	default:
		err = fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, kind)
	}
	if err != nil {
		r.replyError(s, err)
	}
	return err
}

func classify(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return ""
	}
	msg := gjson.ParseBytes(raw)
	if !msg.IsObject() {
		return ""
	}
	switch t := msg.Get("type"); {
	case t.Exists():
		return t.String()
	case msg.Get("nk").Exists():
		return TypeUpdateTrip
	default:
		return TypeCreateTrip
	}
}

// Create is the rider flow: store the trip, subscribe the rider to it, tell
// the trip topic and then every connected driver.
func (r *Router) Create(ctx context.Context, s *session.Session, raw []byte) (*domain.Trip, error) {
	instance := "Router.Create"
	start := time.Now()
	user := s.User()

	if user.Role != domain.RoleRider {
		r.logger.Warn(instance, fmt.Sprintf("create rejected for role %q [user_id=%s]", user.Role, user.ID))
		return nil, fmt.Errorf("%w: only riders can request trips", domain.ErrForbidden)
	}

	var msg CreateTripMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := r.validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if msg.Rider != nil && msg.Rider.ID != "" && msg.Rider.ID != user.ID {
		return nil, fmt.Errorf("%w: rider must be the requesting user", domain.ErrValidation)
	}

	trip, err := r.store.Create(ctx, domain.CreateTripInput{
		PickUpAddress:  msg.PickUpAddress,
		DropOffAddress: msg.DropOffAddress,
		Rider:          user,
	})
	if err != nil {
		r.logger.Error(instance, fmt.Errorf("failed to create trip: %w", err))
		return nil, err
	}

	body, err := domain.Serialize(trip)
	if err != nil {
		return nil, err
	}

	s.Join(trip.NK)
	toTrip := r.registry.Publish(trip.NK, body)
	toDrivers := r.registry.Publish(group.Drivers, body)
	r.emit(ctx, domain.EventTripCreated, trip)

	r.logger.OK(instance, fmt.Sprintf("trip created [nk=%s, rider=%s, trip_subscribers=%d, drivers=%d, duration_ms=%d]",
		trip.NK, user.ID, toTrip, toDrivers, time.Since(start).Milliseconds()))
	return trip, nil
}

// Update is the driver flow: apply the recognized fields, make the driver
// the trip's driver, and tell the trip topic. Drivers are not re-broadcast.
// Once a trip is COMPLETED its topic is closed after the final publish.
func (r *Router) Update(ctx context.Context, s *session.Session, raw []byte) (*domain.Trip, error) {
	instance := "Router.Update"
	start := time.Now()
	user := s.User()

	if user.Role != domain.RoleDriver {
		r.logger.Warn(instance, fmt.Sprintf("update rejected for role %q [user_id=%s]", user.Role, user.ID))
		return nil, fmt.Errorf("%w: only drivers can update trips", domain.ErrForbidden)
	}

	var msg UpdateTripMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := r.validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if msg.Driver != nil && msg.Driver.ID != "" && msg.Driver.ID != user.ID {
		return nil, fmt.Errorf("%w: driver must be the updating user", domain.ErrValidation)
	}

	input := domain.UpdateTripInput{
		PickUpAddress:  msg.PickUpAddress,
		DropOffAddress: msg.DropOffAddress,
		Driver:         &user,
	}
	if msg.Status != nil {
		status, err := domain.ParseStatus(*msg.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
		input.Status = &status
	}

	if _, err := r.store.Get(ctx, msg.NK); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn(instance, fmt.Sprintf("trip not found [nk=%s]", msg.NK))
		}
		return nil, err
	}

	trip, err := r.store.Update(ctx, msg.NK, input)
	if err != nil {
		if apperrors.IsClientError(err) {
			r.logger.Warn(instance, fmt.Sprintf("update refused [nk=%s, driver=%s]: %v", msg.NK, user.ID, err))
		} else {
			r.logger.Error(instance, fmt.Errorf("failed to update trip %s: %w", msg.NK, err))
		}
		return nil, err
	}

	body, err := domain.Serialize(trip)
	if err != nil {
		return nil, err
	}

	s.Join(trip.NK)
	delivered := r.registry.Publish(trip.NK, body)
	if !trip.Active() {
		// completed trips have no subscribers
		released := r.registry.Drop(trip.NK)
		r.logger.Info(instance, fmt.Sprintf("trip topic closed [nk=%s, released=%d]", trip.NK, released))
	}
	r.emit(ctx, domain.EventTripUpdated, trip)

	r.logger.OK(instance, fmt.Sprintf("trip updated [nk=%s, status=%s, driver=%s, subscribers=%d, duration_ms=%d]",
		trip.NK, trip.Status, user.ID, delivered, time.Since(start).Milliseconds()))
	return trip, nil
}

// Relay publishes a free-form JSON message to topic.
func (r *Router) Relay(topic string, message interface{}) (int, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return 0, err
	}
	return r.registry.Publish(topic, body), nil
}

func (r *Router) emit(ctx context.Context, eventType string, trip *domain.Trip) {
	if r.publisher == nil {
		return
	}
	event := domain.TripEvent{
		Type:      eventType,
		Trip:      domain.NewTripView(trip),
		Timestamp: time.Now().UTC(),
	}
	if err := r.publisher.PublishTripEvent(ctx, event); err != nil {
		r.logger.Warn("Router.emit", fmt.Sprintf("failed to publish %s for %s: %v", eventType, trip.NK, err))
	}
}

func (r *Router) replyError(s *session.Session, err error) {
	reply := ErrorReply{
		Type:    "error",
		Code:    apperrors.Code(err),
		Message: err.Error(),
	}
	if reply.Code == apperrors.CodeInternal {
		reply.Message = "internal error"
	}
	body, mErr := json.Marshal(reply)
	if mErr != nil {
		return
	}
	s.Send(body)
}
