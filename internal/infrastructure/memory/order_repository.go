package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/latifaja/ecom-orders/internal/domain/order"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order == nil || order.ID == "" {
		return domain.ErrMissingID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	// line ids are unique across the whole store
	for _, o := range r.orders {
		for _, existing := range o.Lines {
			for _, l := range order.Lines {
				if existing.ID == l.ID {
					return domain.ErrConflict
				}
			}
		}
	}

	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) FindAll(ctx context.Context) ([]*domain.Order, error) {
	return r.filter(ctx, func(*domain.Order) bool { return true })
}

func (r *OrderRepository) FindByClient(ctx context.Context, clientID string) ([]*domain.Order, error) {
	return r.filter(ctx, func(o *domain.Order) bool { return o.ClientID == clientID })
}

func (r *OrderRepository) filter(ctx context.Context, keep func(*domain.Order) bool) ([]*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
