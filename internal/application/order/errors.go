package order

import (
	"errors"
	"fmt"

	domain "github.com/latifaja/ecom-orders/internal/domain/order"
	"github.com/latifaja/ecom-orders/internal/domain/product"
)

var (
	ErrValidation = errors.New("order: invalid request")
	ErrNotFound   = domain.ErrNotFound
	ErrConflict   = domain.ErrConflict
	ErrRepository = errors.New("order: repository failure")
	ErrDirectory  = errors.New("order: inventory directory failure")
)

// ProductNotFoundError rejects an order that references a product the
// inventory service does not know. Nothing has been written when it is returned.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("order: product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return product.ErrNotFound }

// InsufficientStockError rejects a line whose quantity exceeds the stock read
// during validation. Nothing has been written when it is returned.
type InsufficientStockError struct {
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("order: insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// DecrementFailure is the line whose stock adjustment failed and why.
type DecrementFailure struct {
	Line domain.LineItem
	Err  error
}

// PartialFailureError is returned when the order was committed but the stock
// decrement pass stopped early. The order stays PENDING with its full total;
// Applied lines were decremented, Failed was not, NotAttempted were skipped.
type PartialFailureError struct {
	Order        *domain.Order
	Applied      []domain.LineItem
	Failed       DecrementFailure
	NotAttempted []domain.LineItem
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("order: %s recorded but stock decrement failed for product %s (%d of %d lines applied): %v",
		e.Order.ID, e.Failed.Line.ProductID, len(e.Applied), len(e.Order.Lines), e.Failed.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Failed.Err }

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, domain.ErrConflict):
		return ErrConflict
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

func wrapDirectoryError(err error) error {
	return fmt.Errorf("%w: %w", ErrDirectory, err)
}

func newValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
