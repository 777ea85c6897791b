package invoices

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fmc-ops/opsdash/internal/listing"
	"github.com/fmc-ops/opsdash/internal/result"
)

// Table is the backend table name used in change notifications.
const Table = "invoices"

// ChangeHook is told about every successful mutation.
type ChangeHook func(ctx context.Context, table string)

// Service is the invoice data-access layer. Every method returns a Result and
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
func (s *Service) List(ctx context.Context, q listing.Query) result.Result[listing.Page[Invoice]] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	q = q.Normalize()
	items, total, err := s.repo.List(ctx, q)
	return result.FromOr("invoices.list", listing.NewPage(items, total, q), listing.NewPage[Invoice](nil, 0, q), err)
}

// Fetch adapts List to a listing.Fetcher.
func (s *Service) Fetch(ctx context.Context, q listing.Query) result.Result[listing.Page[Invoice]] {
	return s.List(ctx, q)
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, id string) result.Result[Invoice] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	inv, err := s.repo.Get(ctx, id)
	if err == nil && inv.ID == "" {
		err = ErrNotFound
	}
	return result.From("invoices.get", inv, err)
}

// Items returns the lines of one invoice.
func (s *Service) Items(ctx context.Context, invoiceID string) result.Result[[]Item] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	items, err := s.repo.Items(ctx, invoiceID)
	return result.FromList("invoices.items", items, err)
}

// Create inserts a new invoice. Exchange rate defaults to 1, financing to
// Credit and status to Pending; net_amount is stored only when given.
func (s *Service) Create(ctx context.Context, in CreateInput) result.Result[Invoice] {
	if strings.TrimSpace(in.Supplier) == "" {
		return result.Fail[Invoice](result.Invalid("invoices.create", "supplier is required"))
	}
	inv := Invoice{
		ID:            uuid.NewString(),
		Supplier:      strings.TrimSpace(in.Supplier),
		InvoiceDate:   in.InvoiceDate,
		TotalAmount:   in.TotalAmount,
		ExchangeRate:  in.ExchangeRate,
		FinancingType: in.FinancingType,
		Status:        in.Status,
		CreatedAt:     s.now(),
	}
	if in.NetAmount != nil {
		v := *in.NetAmount
		inv.NetAmount = &v
	}
	inv = inv.Normalize()

	bctx, cancel := s.bound(ctx)
	defer cancel()
	created, err := s.repo.Create(bctx, inv)
	res := result.From("invoices.create", created, err)
	if res.IsOk() {
		s.changed(ctx)
	}
	return res
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, patch UpdateInput) result.Result[Invoice] {
	bctx, cancel := s.bound(ctx)
	defer cancel()
	inv, err := s.repo.Update(bctx, id, patch)
	if err == nil && inv.ID == "" {
		err = ErrNotFound
	}
	res := result.From("invoices.update", inv, err)
	if res.IsOk() && !patch.Empty() {
		s.changed(ctx)
	}
	return res
}

// Delete removes one invoice and its items.
func (s *Service) Delete(ctx context.Context, id string) result.Result[Deleted] {
	if strings.TrimSpace(id) == "" {
		return result.Fail[Deleted](ErrNoSelection.WithOp("invoices.delete"))
	}
	bctx, cancel := s.bound(ctx)
	defer cancel()
	err := s.repo.Delete(bctx, id)
	res := result.From("invoices.delete", Deleted{IDs: []string{id}, Count: 1}, err)
	if res.IsOk() {
		s.changed(ctx)
	}
	return res
}

// DeleteMany removes every listed invoice. An empty list is rejected before
// touching the store.
func (s *Service) DeleteMany(ctx context.Context, ids []string) result.Result[Deleted] {
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			clean = append(clean, id)
		}
	}
	if len(clean) == 0 {
		return result.Fail[Deleted](ErrNoSelection.WithOp("invoices.delete_many"))
	}
	bctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.repo.DeleteMany(bctx, clean)
	res := result.From("invoices.delete_many", Deleted{IDs: clean, Count: n}, err)
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
	return result.FromList("invoices.suppliers", list, err)
}

// Count counts invoices with status, or all when status is empty.
func (s *Service) Count(ctx context.Context, status string) result.Result[int] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	n, err := s.repo.Count(ctx, status)
	return result.From("invoices.count", n, err)
}

// Range returns invoices dated within [from, to].
func (s *Service) Range(ctx context.Context, from, to string) result.Result[[]Invoice] {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	list, err := s.repo.Range(ctx, from, to)
	return result.FromList("invoices.range", list, err)
}
