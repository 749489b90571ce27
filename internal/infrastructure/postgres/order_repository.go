package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	domain "github.com/latifaja/ecom-orders/internal/domain/order"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	client_id  TEXT NOT NULL,
	status     TEXT NOT NULL,
	total      NUMERIC NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS orders_client_created_idx ON orders (client_id, created_at, id);
CREATE TABLE IF NOT EXISTS order_lines (
	id         TEXT PRIMARY KEY,
	order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	position   INT  NOT NULL,
	product_id TEXT NOT NULL,
	quantity   INT  NOT NULL CHECK (quantity > 0)
);
CREATE INDEX IF NOT EXISTS order_lines_order_idx ON order_lines (order_id, position);
`

// OrderRepository stores orders and their lines in PostgreSQL. An order and
// all of its lines are written in one transaction.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (r *OrderRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

func (r *OrderRepository) Save(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return domain.ErrMissingID
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, client_id, status, total, created_at) VALUES ($1, $2, $3, $4::numeric, $5)`,
		o.ID, o.ClientID, string(o.Status), o.Total.String(), o.CreatedAt.UTC(),
	)
	if err != nil {
		return mapWriteError(err)
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(
			`INSERT INTO order_lines (id, order_id, position, product_id, quantity) VALUES ($1, $2, $3, $4, $5)`,
			l.ID, o.ID, i, l.ProductID, l.Quantity,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return mapWriteError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	orders, err := r.query(ctx, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	return orders[0], nil
}

func (r *OrderRepository) FindAll(ctx context.Context) ([]*domain.Order, error) {
	return r.query(ctx, ``)
}

func (r *OrderRepository) FindByClient(ctx context.Context, clientID string) ([]*domain.Order, error) {
	return r.query(ctx, `WHERE client_id = $1`, clientID)
}

// query loads matching orders ordered by creation time then id, then attaches
// their lines in submitted order with a second round trip.
func (r *OrderRepository) query(ctx context.Context, where string, args ...any) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, client_id, status, total::text, created_at FROM orders `+where+` ORDER BY created_at, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []*domain.Order
		ids    []string
		byID   = make(map[string]*domain.Order)
	)
	for rows.Next() {
		var (
			o         domain.Order
			status    string
			total     string
			createdAt time.Time
		)
		if err := rows.Scan(&o.ID, &o.ClientID, &status, &total, &createdAt); err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		o.Status = domain.Status(status)
		o.CreatedAt = createdAt.UTC()
		if o.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("postgres: order %s total %q: %w", o.ID, total, err)
		}
		orders = append(orders, &o)
		ids = append(ids, o.ID)
		byID[o.ID] = &o
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}

	lines, err := r.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity FROM order_lines WHERE order_id = ANY($1) ORDER BY order_id, position`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query lines: %w", err)
	}
	defer lines.Close()
	for lines.Next() {
		var l domain.LineItem
		if err := lines.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan line: %w", err)
		}
		if o := byID[l.OrderID]; o != nil {
			o.Lines = append(o.Lines, l)
		}
	}
	if err := lines.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate lines: %w", err)
	}
	return orders, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("postgres: save order: %w", err)
}

var _ domain.Repository = (*OrderRepository)(nil)
