package product

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound means the inventory service has no product with that id.
	ErrNotFound = errors.New("product: not found")
	// ErrNegativeStock means the inventory service refused an adjustment that
	// would leave stock below zero.
	ErrNegativeStock = errors.New("product: stock cannot go below zero")
	// ErrUnavailable wraps transport failures and unexpected responses.
	ErrUnavailable = errors.New("product: directory unavailable")
)

const (
	FailureReasonNotFound      = "not_found"
	FailureReasonNegativeStock = "negative_stock"
	FailureReasonUnavailable   = "directory_unavailable"
)

// Product is the order domain's view of an inventory record. It is owned by the
// inventory service and must be re-fetched whenever it is displayed.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

// FailureReason maps a directory error to a stable, low-cardinality label.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return FailureReasonNotFound
	case errors.Is(err, ErrNegativeStock):
		return FailureReasonNegativeStock
	default:
		return FailureReasonUnavailable
	}
}
