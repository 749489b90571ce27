package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/latifaja/ecom-orders/internal/domain/product"
)

// ProductDirectory is an in-process stand-in for the inventory service. It
// enforces the same floor the real service does: stock never goes below zero.
type ProductDirectory struct {
	mu       sync.RWMutex
	order    []string
	products map[string]product.Product
}

func NewProductDirectory(products ...product.Product) *ProductDirectory {
	d := &ProductDirectory{products: make(map[string]product.Product, len(products))}
	for _, p := range products {
		d.Put(p)
	}
	return d
}

// Put inserts or replaces a product.
func (d *ProductDirectory) Put(p product.Product) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.products[p.ID]; !ok {
		d.order = append(d.order, p.ID)
	}
	d.products[p.ID] = p
}

// Delete removes a product, as if it had been deleted from inventory.
func (d *ProductDirectory) Delete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.products[id]; !ok {
		return
	}
	delete(d.products, id)
	for i, v := range d.order {
		if v == id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

func (d *ProductDirectory) FindOne(ctx context.Context, id string) (*product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", product.ErrUnavailable, err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (d *ProductDirectory) FindAll(ctx context.Context) ([]product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", product.ErrUnavailable, err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]product.Product, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.products[id])
	}
	return out, nil
}

func (d *ProductDirectory) AdjustQuantity(ctx context.Context, id string, delta int) (*product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", product.ErrUnavailable, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	if p.Quantity+delta < 0 {
		return nil, fmt.Errorf("%w: current %d, change %d", product.ErrNegativeStock, p.Quantity, delta)
	}
	p.Quantity += delta
	d.products[id] = p
	return &p, nil
}

// DemoProducts is the catalogue the inventory service ships with in development.
func DemoProducts() []product.Product {
	return []product.Product{
		{ID: "laptop-dell-xps-15", Name: "Laptop Dell XPS 15", Description: "High-performance laptop with Intel i7 processor, 16GB RAM, 512GB SSD", Price: decimal.RequireFromString("1299.99"), Quantity: 15},
		{ID: "mouse-logitech-mx-master-3", Name: "Wireless Mouse Logitech MX Master 3", Description: "Ergonomic wireless mouse with precision tracking and long battery life", Price: decimal.RequireFromString("99.99"), Quantity: 50},
		{ID: "keyboard-keychron-k8", Name: "Mechanical Keyboard Keychron K8", Description: "Wireless mechanical keyboard with RGB backlight, Gateron switches", Price: decimal.RequireFromString("89.99"), Quantity: 30},
		{ID: "monitor-lg-ultrawide-34", Name: "Monitor LG UltraWide 34\"", Description: "34-inch curved ultrawide monitor with 3440x1440 resolution, IPS panel", Price: decimal.RequireFromString("449.99"), Quantity: 20},
		{ID: "webcam-logitech-c920", Name: "Webcam Logitech C920", Description: "Full HD 1080p webcam with autofocus and stereo audio", Price: decimal.RequireFromString("79.99"), Quantity: 40},
	}
}
