package orders

import (
	"context"

	"github.com/fmc-ops/opsdash/internal/listing"
)

// Repository is the order store. Implementations return ErrNotFound for a
// missing order on Get, Update and Delete.
type Repository interface {
	List(ctx context.Context, q listing.Query) ([]Order, int, error)
	Get(ctx context.Context, id string) (Order, error)
	Items(ctx context.Context, orderID string) ([]Item, error)
	Create(ctx context.Context, o Order) (Order, error)
	Update(ctx context.Context, id string, patch UpdateInput) (Order, error)
	// Delete removes the order's items and then the order itself.
	Delete(ctx context.Context, id string) error
	// DeleteMany returns the number of orders actually removed.
	DeleteMany(ctx context.Context, ids []string) (int, error)
	Suppliers(ctx context.Context) ([]string, error)
	// Count counts orders with status, or all orders when status is empty.
	Count(ctx context.Context, status string) (int, error)
	// Range returns every order dated within [from, to]. Empty bounds are open.
	Range(ctx context.Context, from, to string) ([]Order, error)
}
