package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreatedLine mirrors a line item inside OrderCreatedEvent.
type CreatedLine struct {
	LineItemID string `json:"line_item_id"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

// OrderCreatedEvent is emitted once an order has been committed locally.
type OrderCreatedEvent struct {
	OrderID    string          `json:"order_id"`
	ClientID   string          `json:"client_id"`
	Total      decimal.Decimal `json:"total"`
	Lines      []CreatedLine   `json:"lines"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func (e OrderCreatedEvent) AggregateID() string { return e.OrderID }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	lines := make([]CreatedLine, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, CreatedLine{LineItemID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return OrderCreatedEvent{
		OrderID:    o.ID,
		ClientID:   o.ClientID,
		Total:      o.Total,
		Lines:      lines,
		OccurredAt: time.Now().UTC(),
	}
}

// StockDecrementFailedEvent reports a committed order whose inventory was only
// partially decremented. Nothing reacts to it by changing stock; it exists so
// reconciliation can happen outside this service.
type StockDecrementFailedEvent struct {
	OrderID      string        `json:"order_id"`
	ClientID     string        `json:"client_id"`
	ProductID    string        `json:"product_id"`
	Quantity     int           `json:"quantity"`
	Reason       string        `json:"reason"`
	Applied      []CreatedLine `json:"applied"`
	NotAttempted []CreatedLine `json:"not_attempted"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

func (StockDecrementFailedEvent) EventName() string { return "order.stock_decrement_failed" }

func (e StockDecrementFailedEvent) AggregateID() string { return e.OrderID }
