package order

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/latifaja/ecom-orders/internal/domain/order"
	"github.com/latifaja/ecom-orders/internal/domain/product"
)

// LineView is a line item with the product as the inventory service reported it
// when the view was built. Product is nil when the product no longer exists.
type LineView struct {
	ID        string
	ProductID string
	Product   *product.Product
	Quantity  int
}

type OrderView struct {
	ID        string
	ClientID  string
	CreatedAt time.Time
	Status    domain.Status
	Total     decimal.Decimal
	Lines     []LineView
}

func newOrderView(o *domain.Order, products []*product.Product) *OrderView {
	lines := make([]LineView, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = LineView{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity}
		if i < len(products) {
			lines[i].Product = products[i]
		}
	}
	return &OrderView{
		ID:        o.ID,
		ClientID:  o.ClientID,
		CreatedAt: o.CreatedAt,
		Status:    o.Status,
		Total:     o.Total,
		Lines:     lines,
	}
}
