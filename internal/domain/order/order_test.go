package order

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewAssignsOwnershipAndPending(t *testing.T) {
	lines := []LineItem{
		{ID: "l1", ProductID: "p1", Quantity: 2},
		{ID: "l2", ProductID: "p2", Quantity: 3},
	}
	o, err := New("o1", "c1", decimal.NewFromInt(50), lines)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if o.Status != StatusPending {
		t.Fatalf("status = %q, want %q", o.Status, StatusPending)
	}
	if o.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}
	for i, l := range o.Lines {
		if l.OrderID != "o1" {
			t.Fatalf("line %d order id = %q, want o1", i, l.OrderID)
		}
	}
	if lines[0].OrderID != "" {
		t.Fatal("New mutated the caller's slice")
	}
}

func TestNewRejectsInvalidInput(t *testing.T) {
	ok := []LineItem{{ID: "l1", ProductID: "p1", Quantity: 1}}
	tests := []struct {
		name  string
		id    string
		total decimal.Decimal
		lines []LineItem
		want  error
	}{
		{"missing id", "", decimal.Zero, ok, ErrMissingID},
		{"no lines", "o1", decimal.Zero, nil, ErrNoLines},
		{"negative total", "o1", decimal.NewFromInt(-1), ok, ErrInvalidTotal},
		{"zero quantity", "o1", decimal.Zero, []LineItem{{ID: "l1", ProductID: "p1"}}, ErrInvalidQuantity},
		{"missing line id", "o1", decimal.Zero, []LineItem{{ProductID: "p1", Quantity: 1}}, ErrMissingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, "c1", tt.total, tt.lines)
			if !errors.Is(err, tt.want) {
				t.Fatalf("New() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCloneDoesNotShareLines(t *testing.T) {
	o, err := New("o1", "c1", decimal.NewFromInt(10), []LineItem{{ID: "l1", ProductID: "p1", Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	c := o.Clone()
	c.Lines[0].Quantity = 99
	if o.Lines[0].Quantity != 1 {
		t.Fatal("clone shares line storage with original")
	}
}
