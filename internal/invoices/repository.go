package invoices

import (
	"context"

	"github.com/fmc-ops/opsdash/internal/listing"
)

// Repository is the invoice store. Implementations return ErrNotFound for a
// missing invoice on Get, Update and Delete.
type Repository interface {
	List(ctx context.Context, q listing.Query) ([]Invoice, int, error)
	Get(ctx context.Context, id string) (Invoice, error)
	Items(ctx context.Context, invoiceID string) ([]Item, error)
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	Update(ctx context.Context, id string, patch UpdateInput) (Invoice, error)
	// Delete removes the invoice's items and then the invoice itself.
	Delete(ctx context.Context, id string) error
	// DeleteMany returns the number of invoices actually removed.
	DeleteMany(ctx context.Context, ids []string) (int, error)
	Suppliers(ctx context.Context) ([]string, error)
	// Count counts invoices with status, or all invoices when status is empty.
	Count(ctx context.Context, status string) (int, error)
	// Range returns every invoice dated within [from, to]. Empty bounds are open.
	Range(ctx context.Context, from, to string) ([]Invoice, error)
}
