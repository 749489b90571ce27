package order

import (
	"context"
	"fmt"

	domain "github.com/latifaja/ecom-orders/internal/domain/order"
	"github.com/latifaja/ecom-orders/internal/domain/product"
	"github.com/latifaja/ecom-orders/internal/observability"
)

const seedClientID = "demo-client"

// Seeder places a handful of demo orders through the normal creation flow when
// the store is empty. It is a startup convenience and never fatal.
type Seeder struct {
	repo      domain.Repository
	directory product.Directory
	create    *CreateOrderUseCase
	log       observability.Logger
}

func NewSeeder(repo domain.Repository, directory product.Directory, create *CreateOrderUseCase, logger observability.Logger) *Seeder {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Seeder{
		repo:      repo,
		directory: directory,
		create:    create,
		log:       logger.With(observability.F("component", "order_seeder")),
	}
}

// Seed returns the number of orders created.
func (s *Seeder) Seed(ctx context.Context) (int, error) {
	existing, err := s.repo.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: list orders: %w", err)
	}
	if len(existing) > 0 {
		s.log.Info("seed_skipped_store_not_empty", observability.F("orders", len(existing)))
		return 0, nil
	}

	products, err := s.directory.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("seed: list products: %w", err)
	}
	if len(products) == 0 {
		s.log.Info("seed_skipped_no_products")
		return 0, nil
	}

	created := 0
	for _, lines := range seedPlan(products) {
		if _, err := s.create.Execute(ctx, CreateOrderInput{ClientID: seedClientID, Lines: lines}); err != nil {
			return created, fmt.Errorf("seed: create order: %w", err)
		}
		created++
	}
	s.log.Info("seed_done", observability.F("orders", created))
	return created, nil
}

// seedPlan builds up to three demo orders depending on how many products exist.
func seedPlan(p []product.Product) [][]LineInput {
	var plan [][]LineInput
	if len(p) >= 1 {
		plan = append(plan, []LineInput{{ProductID: p[0].ID, Quantity: 2}})
	}
	if len(p) >= 2 {
		plan = append(plan, []LineInput{{ProductID: p[0].ID, Quantity: 1}, {ProductID: p[1].ID, Quantity: 3}})
	}
	if len(p) >= 3 {
		plan = append(plan, []LineInput{{ProductID: p[1].ID, Quantity: 2}, {ProductID: p[2].ID, Quantity: 1}})
	}
	return plan
}
