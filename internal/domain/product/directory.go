package product

import "context"

// Directory is the remote inventory service as seen by the order domain.
//
// AdjustQuantity applies a signed delta and is not idempotent: calling it twice
// applies the delta twice.
type Directory interface {
	FindOne(ctx context.Context, id string) (*Product, error)
	FindAll(ctx context.Context) ([]Product, error)
	AdjustQuantity(ctx context.Context, id string, delta int) (*Product, error)
}
