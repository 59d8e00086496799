package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/Zhima-Mochi/shopcore/internal/domain/order"
)

const uniqueViolation = "23505"

// OrderRepository persists orders in Postgres. Order lines are written once
// inside the insert transaction and never updated; only the parent row's
// status and updated_at change afterwards.
//
// Schema:
//
//	orders      (id text pk, shopper_id text, total_amount bigint,
//	             status text, created_at timestamptz, updated_at timestamptz)
//	order_lines (order_id text references orders, product_id text,
//	             quantity int, unit_price bigint)
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// NewPool builds a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	config.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping: %w", err)
	}
	return pool, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, shopper_id, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, order.ShopperID, order.TotalAmount, string(order.Status),
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, l := range order.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4)`,
			order.ID, l.ProductID, l.Quantity, l.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, shopper_id, total_amount, status, created_at, updated_at
		FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.ShopperID, &o.TotalAmount, &status, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	o.Status = domain.Status(status)

	lines, err := r.lines(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

// TransitionStatus is a compare-and-swap on the status column. Zero rows
// affected means either the order is unknown or another transition won the
// race; the follow-up existence check disambiguates.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, from, to domain.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check order existence: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStaleStatus
}

func (r *OrderRepository) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]*domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, shopper_id, total_amount, status, created_at, updated_at
		FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at`,
		string(domain.StatusPending), cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		var o domain.Order
		var status string
		if err := rows.Scan(&o.ID, &o.ShopperID, &o.TotalAmount, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Status = domain.Status(status)
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for _, o := range out {
		lines, err := r.lines(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		o.Lines = lines
	}
	return out, nil
}

func (r *OrderRepository) lines(ctx context.Context, orderID string) ([]domain.Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_lines WHERE order_id = $1`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.Line
	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return lines, nil
}
