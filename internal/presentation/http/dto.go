package httppresentation

import (
	"time"

	appOrder "github.com/latifaja/ecom-orders/internal/application/order"
	domainOrder "github.com/latifaja/ecom-orders/internal/domain/order"
	"github.com/latifaja/ecom-orders/internal/domain/product"
)

type createOrderRequest struct {
	ClientID string             `json:"client_id"`
	Products []orderLineRequest `json:"products"`
}

type orderLineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type productResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

type orderLineResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	// Product is null when the product has been deleted from inventory.
	Product  *productResponse `json:"product"`
	Quantity int              `json:"quantity"`
}

type orderResponse struct {
	ID       string              `json:"id"`
	ClientID string              `json:"client_id"`
	Date     time.Time           `json:"date"`
	Status   string              `json:"status"`
	Amount   float64             `json:"amount"`
	Products []orderLineResponse `json:"products"`
}

type lineRef struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type partialFailureResponse struct {
	Error        string        `json:"error"`
	Reason       string        `json:"reason"`
	Order        orderResponse `json:"order"`
	Applied      []lineRef     `json:"applied"`
	FailedLine   lineRef       `json:"failed_line"`
	NotAttempted []lineRef     `json:"not_attempted"`
}

func toOrderResponse(v *appOrder.OrderView) orderResponse {
	lines := make([]orderLineResponse, 0, len(v.Lines))
	for _, l := range v.Lines {
		lines = append(lines, orderLineResponse{
			ID:        l.ID,
			ProductID: l.ProductID,
			Product:   toProductResponse(l.Product),
			Quantity:  l.Quantity,
		})
	}
	return orderResponse{
		ID:       v.ID,
		ClientID: v.ClientID,
		Date:     v.CreatedAt,
		Status:   string(v.Status),
		Amount:   v.Total.InexactFloat64(),
		Products: lines,
	}
}

func toOrderResponses(views []*appOrder.OrderView) []orderResponse {
	out := make([]orderResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toOrderResponse(v))
	}
	return out
}

func toProductResponse(p *product.Product) *productResponse {
	if p == nil {
		return nil
	}
	return &productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Quantity:    p.Quantity,
	}
}

func toLineRefs(lines []domainOrder.LineItem) []lineRef {
	out := make([]lineRef, 0, len(lines))
	for _, l := range lines {
		out = append(out, toLineRef(l))
	}
	return out
}

func toLineRef(l domainOrder.LineItem) lineRef {
	return lineRef{ID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity}
}
