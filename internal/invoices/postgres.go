package invoices

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

const invoiceColumns = `id::text, supplier, invoice_date::text, total_amount::float8, net_amount::float8,
	COALESCE(exchange_rate, 1)::float8, COALESCE(financing_type, ''), COALESCE(status, ''), created_at`

var listColumns = listing.Columns{
	ID:       "id::text",
	Supplier: "supplier",
	Status:   "status",
	Date:     "invoice_date",
	Sortable: map[string]string{
		"supplier":     "supplier",
		"status":       "status",
		"total_amount": "total_amount",
		"created_at":   "created_at",
		"invoice_date": "invoice_date",
	},
}

// PGRepository stores invoices in the invoices and invoice_items tables.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository wraps pool. A nil pool yields a repository whose every
// call fails with ErrBackendNotConfigured.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) List(ctx context.Context, q listing.Query) ([]Invoice, int, error) {
	if r.pool == nil {
		return nil, 0, ErrBackendNotConfigured
	}
	q = q.Normalize()
	where, args := listing.Where(q.Filter, listColumns)

	var total int
	countQuery := "SELECT COUNT(*) FROM invoices " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("invoices: count: %w", err)
	}

	limit, args := listing.LimitOffset(q, args)
	query := fmt.Sprintf("SELECT %s FROM invoices %s %s %s", invoiceColumns, where, listing.OrderBy(q, listColumns), limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("invoices: list: %w", err)
	}
	defer rows.Close()

	list, err := scanInvoices(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Invoice, error) {
	if r.pool == nil {
		return Invoice{}, ErrBackendNotConfigured
	}
	row := r.pool.QueryRow(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE id::text = $1", id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: get: %w", err)
	}
	return inv, nil
}

func (r *PGRepository) Items(ctx context.Context, invoiceID string) ([]Item, error) {
	if r.pool == nil {
		return nil, ErrBackendNotConfigured
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, invoice_id::text, COALESCE(item_id, ''), COALESCE(description, ''),
		       COALESCE(units, 0)::float8, COALESCE(unit_price, 0)::float8,
		       COALESCE(batch_number, ''), COALESCE(amount, 0)::float8
		FROM invoice_items
		WHERE invoice_id::text = $1
		ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoices: items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ItemID, &it.Description,
			&it.Units, &it.UnitPrice, &it.BatchNumber, &it.Amount); err != nil {
			return nil, fmt.Errorf("invoices: scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	if r.pool == nil {
		return Invoice{}, ErrBackendNotConfigured
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (id, supplier, invoice_date, total_amount, net_amount, exchange_rate, financing_type, status, created_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9)
		RETURNING `+invoiceColumns,
		inv.ID, inv.Supplier, inv.InvoiceDate, inv.TotalAmount, inv.NetAmount, inv.ExchangeRate, inv.FinancingType, inv.Status, inv.CreatedAt)
	created, err := scanInvoice(row)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: create: %w", err)
	}
	return created, nil
}

func (r *PGRepository) Update(ctx context.Context, id string, patch UpdateInput) (Invoice, error) {
	if r.pool == nil {
		return Invoice{}, ErrBackendNotConfigured
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
	if patch.InvoiceDate != nil {
		add("invoice_date", *patch.InvoiceDate)
	}
	if patch.TotalAmount != nil {
		add("total_amount", *patch.TotalAmount)
	}
	if patch.NetAmount != nil {
		add("net_amount", *patch.NetAmount)
	}
	if patch.ExchangeRate != nil {
		add("exchange_rate", *patch.ExchangeRate)
	}
	if patch.FinancingType != nil {
		add("financing_type", *patch.FinancingType)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}

	query := fmt.Sprintf("UPDATE invoices SET %s WHERE id::text = $%d RETURNING %s", strings.Join(sets, ", "), argPos, invoiceColumns)
	args = append(args, id)
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("invoices: update: %w", err)
	}
	return inv, nil
}

func (r *PGRepository) Delete(ctx context.Context, id string) error {
	if r.pool == nil {
		return ErrBackendNotConfigured
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM invoice_items WHERE invoice_id::text = $1", id); err != nil {
			return fmt.Errorf("invoices: delete items: %w", err)
		}
		tag, err := tx.Exec(ctx, "DELETE FROM invoices WHERE id::text = $1", id)
		if err != nil {
			return fmt.Errorf("invoices: delete: %w", err)
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
		if _, err := tx.Exec(ctx, "DELETE FROM invoice_items WHERE invoice_id::text = ANY($1)", ids); err != nil {
			return fmt.Errorf("invoices: delete items: %w", err)
		}
		tag, err := tx.Exec(ctx, "DELETE FROM invoices WHERE id::text = ANY($1)", ids)
		if err != nil {
			return fmt.Errorf("invoices: delete many: %w", err)
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
	rows, err := r.pool.Query(ctx, "SELECT DISTINCT supplier FROM invoices WHERE supplier <> '' ORDER BY supplier")
	if err != nil {
		return nil, fmt.Errorf("invoices: suppliers: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("invoices: scan supplier: %w", err)
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
		err = r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices").Scan(&n)
	} else {
		err = r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices WHERE status = $1", status).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("invoices: count: %w", err)
	}
	return n, nil
}

func (r *PGRepository) Range(ctx context.Context, from, to string) ([]Invoice, error) {
	if r.pool == nil {
		return nil, ErrBackendNotConfigured
	}
	where, args := listing.Where(listing.Filter{DateFrom: from, DateTo: to}, listColumns)
	rows, err := r.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM invoices %s ORDER BY invoice_date", invoiceColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("invoices: range: %w", err)
	}
	defer rows.Close()
	return scanInvoices(rows)
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Supplier, &inv.InvoiceDate, &inv.TotalAmount, &inv.NetAmount,
		&inv.ExchangeRate, &inv.FinancingType, &inv.Status, &inv.CreatedAt)
	if err != nil {
		return Invoice{}, err
	}
	return inv.Normalize(), nil
}

func scanInvoices(rows pgx.Rows) ([]Invoice, error) {
	list := []Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("invoices: scan: %w", err)
		}
		list = append(list, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("invoices: rows: %w", err)
	}
	return list, nil
}
