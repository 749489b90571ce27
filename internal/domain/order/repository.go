package order

import "context"

// Repository persists orders together with their line items.
// Save is atomic: the order and all of its lines are stored, or nothing is.
type Repository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindAll(ctx context.Context) ([]*Order, error)
	FindByClient(ctx context.Context, clientID string) ([]*Order, error)
}
