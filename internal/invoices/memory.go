package invoices

import (
	"context"
	"sort"
	"sync"

	"github.com/fmc-ops/opsdash/internal/listing"
)

// MemoryRepository keeps invoices in process for mock mode and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	invoices []Invoice
	items  []Item
}

// NewMemoryRepository copies list and items into a new store.
func NewMemoryRepository(list []Invoice, items []Item) *MemoryRepository {
	return &MemoryRepository{
		invoices: append([]Invoice(nil), list...),
		items:  append([]Item(nil), items...),
	}
}

// NewSeededRepository is a store holding Seed().
func NewSeededRepository() *MemoryRepository {
	return NewMemoryRepository(Seed())
}

func (r *MemoryRepository) List(_ context.Context, q listing.Query) ([]Invoice, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	page, total := listing.Apply(r.invoices, q, Fields)
	return append([]Invoice(nil), page...), total, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.index(id); i >= 0 {
		return r.invoices[i], nil
	}
	return Invoice{}, ErrNotFound
}

func (r *MemoryRepository) Items(_ context.Context, invoiceID string) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Item{}
	for _, it := range r.items {
		if it.InvoiceID == invoiceID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Create(_ context.Context, inv Invoice) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices = append([]Invoice{inv}, r.invoices...)
	return inv, nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, patch UpdateInput) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return Invoice{}, ErrNotFound
	}
	r.invoices[i] = patch.apply(r.invoices[i])
	return r.invoices[i], nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index(id) < 0 {
		return ErrNotFound
	}
	r.remove(map[string]struct{}{id: {}})
	return nil
}

func (r *MemoryRepository) DeleteMany(_ context.Context, ids []string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return r.remove(set), nil
}

func (r *MemoryRepository) Suppliers(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	out := []string{}
	for _, inv := range r.invoices {
		if _, ok := seen[inv.Supplier]; ok || inv.Supplier == "" {
			continue
		}
		seen[inv.Supplier] = struct{}{}
		out = append(out, inv.Supplier)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) Count(_ context.Context, status string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if status == "" {
		return len(r.invoices), nil
	}
	n := 0
	for _, inv := range r.invoices {
		if inv.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Range(_ context.Context, from, to string) ([]Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Invoice{}
	for _, inv := range r.invoices {
		if (from == "" || inv.InvoiceDate >= from) && (to == "" || inv.InvoiceDate <= to) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *MemoryRepository) index(id string) int {
	for i, inv := range r.invoices {
		if inv.ID == id {
			return i
		}
	}
	return -1
}

// remove drops the items of every invoice in set, then the invoices, and
// returns how many invoices went.
func (r *MemoryRepository) remove(set map[string]struct{}) int {
	items := r.items[:0]
	for _, it := range r.items {
		if _, ok := set[it.InvoiceID]; !ok {
			items = append(items, it)
		}
	}
	r.items = items

	kept := r.invoices[:0]
	removed := 0
	for _, inv := range r.invoices {
		if _, ok := set[inv.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, inv)
	}
	r.invoices = kept
	return removed
}
