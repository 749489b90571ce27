package order

import (
	"context"
	"errors"
	"testing"

	"github.com/latifaja/ecom-orders/internal/domain/product"
	"github.com/latifaja/ecom-orders/internal/infrastructure/memory"
)

func placeOrder(t *testing.T, uc *CreateOrderUseCase, client string, lines ...LineInput) *OrderView {
	t.Helper()
	v, err := uc.Execute(context.Background(), CreateOrderInput{ClientID: client, Lines: lines})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return v
}

func TestQueryRefetchesProductsLive(t *testing.T) {
	dir := newRecordingDirectory(priced("P1", "10", 5), priced("P2", "3", 5))
	repo := memory.NewOrderRepository()
	create := NewCreateOrderUseCase(repo, dir, &sequentialIDs{}, nil, nil)
	q := NewQueryUseCase(repo, dir, nil)

	placed := placeOrder(t, create, "c", LineInput{ProductID: "P1", Quantity: 1}, LineInput{ProductID: "P2", Quantity: 1})

	// inventory changes after the order was placed
	dir.Put(priced("P1", "12", 40))
	dir.Delete("P2")

	got, err := q.Get(context.Background(), placed.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Lines[0].Product == nil || got.Lines[0].Product.Price.String() != "12" || got.Lines[0].Product.Quantity != 40 {
		t.Fatalf("line 0 product = %+v, want live values", got.Lines[0].Product)
	}
	if got.Lines[1].Product != nil || got.Lines[1].ProductID != "P2" {
		t.Fatalf("line 1 = %+v, want nil product for deleted P2", got.Lines[1])
	}
	if got.Total.String() != "13" {
		t.Fatalf("total = %s, want the committed 13", got.Total)
	}
}

func TestQueryGetErrors(t *testing.T) {
	dir := newRecordingDirectory(priced("P1", "10", 5))
	repo := memory.NewOrderRepository()
	create := NewCreateOrderUseCase(repo, dir, &sequentialIDs{}, nil, nil)
	q := NewQueryUseCase(repo, dir, nil)

	if _, err := q.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := q.Get(context.Background(), " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("Get(blank) error = %v, want ErrValidation", err)
	}

	placed := placeOrder(t, create, "c", LineInput{ProductID: "P1", Quantity: 1})
	dir.findOneErr = product.ErrUnavailable
	if _, err := q.Get(context.Background(), placed.ID); !errors.Is(err, ErrDirectory) {
		t.Fatalf("Get() with directory down error = %v, want ErrDirectory", err)
	}
}

func TestQueryListAndListByClient(t *testing.T) {
	dir := newRecordingDirectory(priced("P1", "1", 100))
	repo := memory.NewOrderRepository()
	create := NewCreateOrderUseCase(repo, dir, &sequentialIDs{}, nil, nil)
	q := NewQueryUseCase(repo, dir, nil)

	a := placeOrder(t, create, "alice", LineInput{ProductID: "P1", Quantity: 1})
	placeOrder(t, create, "bob", LineInput{ProductID: "P1", Quantity: 2})
	c := placeOrder(t, create, "alice", LineInput{ProductID: "P1", Quantity: 3})

	all, err := q.List(context.Background())
	if err != nil || len(all) != 3 {
		t.Fatalf("List() = %d views, %v", len(all), err)
	}

	alice, err := q.ListByClient(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ListByClient() error = %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("alice has %d orders, want 2", len(alice))
	}
	ids := map[string]bool{alice[0].ID: true, alice[1].ID: true}
	if !ids[a.ID] || !ids[c.ID] {
		t.Fatalf("alice orders = %v", ids)
	}

	none, err := q.ListByClient(context.Background(), "carol")
	if err != nil || len(none) != 0 {
		t.Fatalf("ListByClient(carol) = %v, %v; want empty", none, err)
	}
}

func TestQueryObservesDurationPerUseCase(t *testing.T) {
	dir := newRecordingDirectory(priced("P1", "10", 5))
	repo := memory.NewOrderRepository()
	tel := newCountingTelemetry()
	q := NewQueryUseCase(repo, dir, tel)

	_, _ = q.List(context.Background())
	_, _ = q.ListByClient(context.Background(), "c")
	_, _ = q.ListByClient(context.Background(), "c")
	_, _ = q.Get(context.Background(), "missing")

	h := tel.Histogram("usecase_duration_seconds").(*labelHistogram)
	for key, want := range map[string]int{
		"use_case=order.list;":           1,
		"use_case=order.list_by_client;": 2,
		"use_case=order.get;":            1,
	} {
		if got := h.get(key); got != want {
			t.Errorf("observations for %s = %d, want %d", key, got, want)
		}
	}
}
