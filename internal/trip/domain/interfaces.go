package domain

import "context"

type TripRepository interface {
	Create(ctx context.Context, input CreateTripInput) (*Trip, error)
	Get(ctx context.Context, nk string) (*Trip, error)
	Update(ctx context.Context, nk string, input UpdateTripInput) (*Trip, error)
	List(ctx context.Context, filter TripFilter) ([]Trip, error)
}

// Publisher forwards trip events outside the process.
type Publisher interface {
	PublishTripEvent(ctx context.Context, event TripEvent) error
}
