package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/platform/db"
	"github.com/fmc-ops/opsdash/internal/result"
)

// ErrBackendNotConfigured is returned by a PGRepository without a pool.
var ErrBackendNotConfigured = result.Sentinel(result.KindConfig, "Backend not configured. Set BACKEND_URL and BACKEND_API_KEY.")

const orderColumns = `id::text, supplier, order_date::text, total_amount::float8, net_amount::float8,
	COALESCE(source_channel, ''), COALESCE(status, ''), created_at`

var listColumns = listing.Columns{
	ID:       "id::text",
	Supplier: "supplier",
	Status:   "status",
	Date:     "order_date",
	Sortable: map[string]string{
		"supplier":     "supplier",
		"status":       "status",
		"total_amount": "total_amount",
		"created_at":   "created_at",
		"order_date":   "order_date",
	},
}

// PGRepository stores orders in the orders and order_items tables.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository wraps pool. A nil pool yields a repository whose every
// call fails with ErrBackendNotConfigured.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) List(ctx context.Context, q listing.Query) ([]Order, int, error) {
	if r.pool == nil {
		return nil, 0, ErrBackendNotConfigured
	}
	q = q.Normalize()
	where, args := listing.Where(q.Filter, listColumns)

	var total int
	countQuery := "SELECT COUNT(*) FROM orders " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("orders: count: %w", err)
	}

	limit, args := listing.LimitOffset(q, args)
	query := fmt.Sprintf("SELECT %s FROM orders %s %s %s", orderColumns, where, listing.OrderBy(q, listColumns), limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()

	list, err := scanOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Order, error) {
	if r.pool == nil {
		return Order{}, ErrBackendNotConfigured
	}
	row := r.pool.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id::text = $1", id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("orders: get: %w", err)
	}
	return o, nil
}

func (r *PGRepository) Items(ctx context.Context, orderID string) ([]Item, error) {
	if r.pool == nil {
		return nil, ErrBackendNotConfigured
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, order_id::text, COALESCE(product_code, ''), COALESCE(description, ''),
		       COALESCE(units, 0)::float8, COALESCE(unit_price, 0)::float8,
		       COALESCE(batch_number, ''), COALESCE(amount, 0)::float8
		FROM order_items
		WHERE order_id::text = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductCode, &it.Description,
			&it.Units, &it.UnitPrice, &it.BatchNumber, &it.Amount); err != nil {
			return nil, fmt.Errorf("orders: scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, o Order) (Order, error) {
	if r.pool == nil {
		return Order{}, ErrBackendNotConfigured
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO orders (id, supplier, order_date, total_amount, net_amount, source_channel, status, created_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8)
		RETURNING `+orderColumns,
		o.ID, o.Supplier, o.OrderDate, o.TotalAmount, o.NetAmount, o.SourceChannel, o.Status, o.CreatedAt)
	created, err := scanOrder(row)
	if err != nil {
		return Order{}, fmt.Errorf("orders: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Update(ctx context.Context, id string, patch UpdateInput) (Order, error) {
	if r.pool == nil {
		return Order{}, ErrBackendNotConfigured
	}
	var sets []string
	var args []any
	argPos := 1
	add := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argPos))
		args = append(args, value)
		argPos++
	}
	if patch.Supplier != nil {
		add("supplier", *patch.Supplier)
	}
	if patch.OrderDate != nil {
		add("order_date", *patch.OrderDate)
	}
	if patch.TotalAmount != nil {
		add("total_amount", *patch.TotalAmount)
	}
	if patch.NetAmount != nil {
		add("net_amount", *patch.NetAmount)
	}
	if patch.SourceChannel != nil {
		add("source_channel", *patch.SourceChannel)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}

	query := fmt.Sprintf("UPDATE orders SET %s WHERE id::text = $%d RETURNING %s", strings.Join(sets, ", "), argPos, orderColumns)
	args = append(args, id)
	o, err := scanOrder(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("orders: update: %w", err)
	}
	return o, nil
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	if r.pool == nil {
		return ErrBackendNotConfigured
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_id::text = $1", id); err != nil {
			return fmt.Errorf("orders: delete items: %w", err)
		}
		tag, err := tx.Exec(ctx, "DELETE FROM orders WHERE id::text = $1", id)
		if err != nil {
			return fmt.Errorf("orders: delete: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *PGRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	if r.pool == nil {
		return 0, ErrBackendNotConfigured
	}
	var removed int
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_id::text = ANY($1)", ids); err != nil {
			return fmt.Errorf("orders: delete items: %w", err)
		}
		tag, err := tx.Exec(ctx, "DELETE FROM orders WHERE id::text = ANY($1)", ids)
		if err != nil {
			return fmt.Errorf("orders: delete many: %w", err)
		}
		removed = int(tag.RowsAffected())
		return nil
	})
	return removed, err
}

func (r *PGRepository) Suppliers(ctx context.Context) ([]string, error) {
	if r.pool == nil {
		return nil, ErrBackendNotConfigured
	}
	rows, err := r.pool.Query(ctx, "SELECT DISTINCT supplier FROM orders WHERE supplier <> '' ORDER BY supplier")
	if err != nil {
		return nil, fmt.Errorf("orders: suppliers: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("orders: scan supplier: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PGRepository) Count(ctx context.Context, status string) (int, error) {
	if r.pool == nil {
		return 0, ErrBackendNotConfigured
	}
	var n int
	var err error
	if status == "" {
		err = r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders").Scan(&n)
	} else {
		err = r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders WHERE status = $1", status).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("orders: count: %w", err)
	}
	return n, nil
}

func (r *PGRepository) Range(ctx context.Context, from, to string) ([]Order, error) {
	if r.pool == nil {
		return nil, ErrBackendNotConfigured
	}
	where, args := listing.Where(listing.Filter{DateFrom: from, DateTo: to}, listColumns)
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM orders %s ORDER BY order_date", orderColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("orders: range: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Supplier, &o.OrderDate, &o.TotalAmount, &o.NetAmount,
		&o.SourceChannel, &o.Status, &o.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	return o.Normalize(), nil
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	list := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders: scan: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: rows: %w", err)
	}
	return list, nil
}
