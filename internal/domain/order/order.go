package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound        = errors.New("order: not found")
	ErrConflict        = errors.New("order: already exists")
	ErrNoLines         = errors.New("order: at least one line item is required")
	ErrInvalidQuantity = errors.New("order: quantity must be greater than zero")
	ErrInvalidTotal    = errors.New("order: total must be zero or greater")
	ErrMissingID       = errors.New("order: id is required")
)

type Status string

// StatusPending is the only status an order is ever given.
const StatusPending Status = "PENDING"

// LineItem is one (product, quantity) entry owned by exactly one Order.
// ProductID points into the inventory service; product details are never stored here.
type LineItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
}

type Order struct {
	ID        string
	ClientID  string
	Status    Status
	Total     decimal.Decimal
	CreatedAt time.Time
	Lines     []LineItem
}

// New builds a pending order. The total is computed by the caller from the prices
// observed at validation time and is fixed from here on.
func New(id, clientID string, total decimal.Decimal, lines []LineItem) (*Order, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	if total.IsNegative() {
		return nil, ErrInvalidTotal
	}

	owned := make([]LineItem, len(lines))
	for i, l := range lines {
		if l.ID == "" {
			return nil, ErrMissingID
		}
		if l.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		l.OrderID = id
		owned[i] = l
	}

	return &Order{
		ID:        id,
		ClientID:  clientID,
		Status:    StatusPending,
		Total:     total,
		CreatedAt: time.Now().UTC(),
		Lines:     owned,
	}, nil
}

// Clone returns a deep copy so adapters never share line slices with callers.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]LineItem(nil), o.Lines...)
	return &c
}
