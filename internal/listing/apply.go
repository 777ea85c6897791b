package listing

import (
	"sort"
	"strings"
)

// Fields tells Apply how to read the filterable attributes of T.
type Fields[T any] struct {
	ID       func(T) string
	Supplier func(T) string
	Status   func(T) string
	// Date returns the entity date as YYYY-MM-DD so bounds compare lexically.
	Date   func(T) string
	Amount func(T) float64
}

// Match reports whether item passes every set filter. Search is a
// case-insensitive substring match on supplier or id; supplier and status
// are exact; date bounds are inclusive.
func (f Fields[T]) Match(item T, filter Filter) bool {
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(f.Supplier(item)), needle) &&
			!strings.Contains(strings.ToLower(f.ID(item)), needle) {
			return false
		}
	}
	if filter.Supplier != "" && f.Supplier(item) != filter.Supplier {
		return false
	}
	if filter.Status != "" && f.Status(item) != filter.Status {
		return false
	}
	date := f.Date(item)
	if filter.DateFrom != "" && date < filter.DateFrom {
		return false
	}
	if filter.DateTo != "" && date > filter.DateTo {
		return false
	}
	return true
}

// Apply filters, sorts and slices items for q and returns the page together
// with the match count before slicing. The input slice is not modified.
func Apply[T any](items []T, q Query, f Fields[T]) ([]T, int) {
	q = q.Normalize()
	matched := make([]T, 0, len(items))
	for _, item := range items {
		if f.Match(item, q.Filter) {
			matched = append(matched, item)
		}
	}

	less := f.less(q.SortBy)
	sort.SliceStable(matched, func(i, j int) bool {
		if q.SortAsc {
			return less(matched[i], matched[j])
		}
		return less(matched[j], matched[i])
	})

	total := len(matched)
	start := q.Offset()
	if start >= total {
		return []T{}, total
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total
}

func (f Fields[T]) less(sortBy string) func(a, b T) bool {
	switch sortBy {
	case "supplier":
		return func(a, b T) bool { return f.Supplier(a) < f.Supplier(b) }
	case "total_amount":
		if f.Amount != nil {
			return func(a, b T) bool { return f.Amount(a) < f.Amount(b) }
		}
	case "status":
		return func(a, b T) bool { return f.Status(a) < f.Status(b) }
	}
	return func(a, b T) bool { return f.Date(a) < f.Date(b) }
}
