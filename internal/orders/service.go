package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/result"
)

// Table is the backend table name used in change notifications.
const Table = "orders"

// ChangeHook is told about every successful mutation.
type ChangeHook func(ctx context.Context, table string)

// Service is the order data-access layer. Every method returns a Result and
// never a bare error.
type Service struct {
	repo     Repository
	timeout  time.Duration
	onChange ChangeHook
	now      func() time.Time
}

// NewService builds a Service. timeout bounds each repository call; zero
// disables the bound.
func NewService(repo Repository, timeout time.Duration) *Service {
	return &Service{repo: repo, timeout: timeout, now: func() time.Time { return time.Now().UTC() }}
}

// OnChange installs the mutation hook.
func (s *Service) OnChange(hook ChangeHook) {
	s.onChange = hook
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Service) changed(ctx context.Context) {
	if s.onChange != nil {
		s.onChange(ctx, Table)
	}
}

// List returns one filtered page.
func (s *Service) List(ctx context.Context, q listing.Query) result.Result[listing.Page[Order]] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	q = q.Normalize()
	items, total, err := s.repo.List(ctx, q)
	return result.FromOr("orders.list", listing.NewPage(items, total, q), listing.NewPage[Order](nil, 0, q), err)
}

// Fetch adapts List to a listing.Fetcher.
func (s *Service) Fetch(ctx context.Context, q listing.Query) result.Result[listing.Page[Order]] {
	return s.List(ctx, q)
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id string) result.Result[Order] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	o, err := s.repo.Get(ctx, id)
	if err == nil && o.ID == "" {
		err = ErrNotFound
	}
	return result.From("orders.get", o, err)
}

// Items returns the lines of one order.
func (s *Service) Items(ctx context.Context, orderID string) result.Result[[]Item] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	items, err := s.repo.Items(ctx, orderID)
	return result.FromList("orders.items", items, err)
}

// Create inserts a new order. Source defaults to Web and status to Pending;
// net_amount is stored only when given.
func (s *Service) Create(ctx context.Context, in CreateInput) result.Result[Order] {
	if strings.TrimSpace(in.Supplier) == "" {
		return result.Fail[Order](result.Invalid("orders.create", "supplier is required"))
	}
	o := Order{
		ID:            uuid.NewString(),
		Supplier:      strings.TrimSpace(in.Supplier),
		OrderDate:     in.OrderDate,
		TotalAmount:   in.TotalAmount,
		SourceChannel: in.SourceChannel,
		Status:        in.Status,
		CreatedAt:     s.now(),
	}
	if in.NetAmount != nil {
		v := *in.NetAmount
		o.NetAmount = &v
	}
	if o.SourceChannel == "" {
		o.SourceChannel = SourceWeb
	}
	if o.Status == "" {
		o.Status = StatusPending
	}

	bctx, cancel := s.bound(ctx)
	defer cancel()
	created, err := s.repo.Create(bctx, o)
	res := result.From("orders.create", created, err)
	if res.IsOk() {
		s.changed(ctx)
	}
	return res
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, patch UpdateInput) result.Result[Order] {
	bctx, cancel := s.bound(ctx)
	defer cancel()
	o, err := s.repo.Update(bctx, id, patch)
	if err == nil && o.ID == "" {
		err = ErrNotFound
	}
	res := result.From("orders.update", o, err)
	if res.IsOk() && !patch.Empty() {
		s.changed(ctx)
	}
	return res
}

// Delete removes one order and its items.
func (s *Service) Delete(ctx context.Context, id string) result.Result[Deleted] {
	if strings.TrimSpace(id) == "" {
		return result.Fail[Deleted](ErrNoSelection.WithOp("orders.delete"))
	}
	bctx, cancel := s.bound(ctx)
	defer cancel()
	err := s.repo.Delete(bctx, id)
	res := result.From("orders.delete", Deleted{IDs: []string{id}, Count: 1}, err)
	if res.IsOk() {
		s.changed(ctx)
	}
	return res
}

// DeleteMany removes every listed order. An empty list is rejected before
// touching the store.
func (s *Service) DeleteMany(ctx context.Context, ids []string) result.Result[Deleted] {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return result.Fail[Deleted](ErrNoSelection.WithOp("orders.delete_many"))
	}
	bctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.repo.DeleteMany(bctx, clean)
	res := result.From("orders.delete_many", Deleted{IDs: clean, Count: n}, err)
	if res.IsOk() && n > 0 {
		s.changed(ctx)
	}
	return res
}

// Suppliers returns the sorted distinct suppliers.
func (s *Service) Suppliers(ctx context.Context) result.Result[[]string] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	list, err := s.repo.Suppliers(ctx)
	return result.FromList("orders.suppliers", list, err)
}

// Count counts orders with status, or all when status is empty.
func (s *Service) Count(ctx context.Context, status string) result.Result[int] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.repo.Count(ctx, status)
	return result.From("orders.count", n, err)
}

// Range returns orders dated within [from, to].
func (s *Service) Range(ctx context.Context, from, to string) result.Result[[]Order] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	list, err := s.repo.Range(ctx, from, to)
	return result.FromList("orders.range", list, err)
}
