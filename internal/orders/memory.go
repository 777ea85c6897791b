package orders

import (
	"context"
	"sort"
	"sync"

	"github.com/fmc-ops/opsdash/internal/listing"
)

// MemoryRepository keeps orders in process for mock mode and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders []Order
	items  []Item
}

// NewMemoryRepository copies list and items into a new store.
func NewMemoryRepository(list []Order, items []Item) *MemoryRepository {
	return &MemoryRepository{
		orders: append([]Order(nil), list...),
		items:  append([]Item(nil), items...),
	}
}

// NewSeededRepository is a store holding Seed().
func NewSeededRepository() *MemoryRepository {
	return NewMemoryRepository(Seed())
}

func (r *MemoryRepository) List(_ context.Context, q listing.Query) ([]Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	page, total := listing.Apply(r.orders, q, Fields)
	return append([]Order(nil), page...), total, nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.index(id); i >= 0 {
		return r.orders[i], nil
	}
	return Order{}, ErrNotFound
}

func (r *MemoryRepository) Items(_ context.Context, orderID string) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Item{}
	for _, it := range r.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Create(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append([]Order{o}, r.orders...)
	return o, nil
}

func (r *MemoryRepository) Update(_ context.Context, id string, patch UpdateInput) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(id)
	if i < 0 {
		return Order{}, ErrNotFound
	}
	r.orders[i] = patch.apply(r.orders[i])
	return r.orders[i], nil
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
	for _, o := range r.orders {
		if _, ok := seen[o.Supplier]; ok || o.Supplier == "" {
			continue
		}
		seen[o.Supplier] = struct{}{}
		out = append(out, o.Supplier)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) Count(_ context.Context, status string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if status == "" {
		return len(r.orders), nil
	}
	n := 0
	for _, o := range r.orders {
		if o.Status == status {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) Range(_ context.Context, from, to string) ([]Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Order{}
	for _, o := range r.orders {
		if (from == "" || o.OrderDate >= from) && (to == "" || o.OrderDate <= to) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *MemoryRepository) index(id string) int {
	for i, o := range r.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// remove drops the items of every order in set, then the orders, and
// returns how many orders went.
func (r *MemoryRepository) remove(set map[string]struct{}) int {
	items := r.items[:0]
	for _, it := range r.items {
		if _, ok := set[it.OrderID]; !ok {
			items = append(items, it)
		}
	}
	r.items = items

	kept := r.orders[:0]
	removed := 0
	for _, o := range r.orders {
		if _, ok := set[o.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	r.orders = kept
	return removed
}
