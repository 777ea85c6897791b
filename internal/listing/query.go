// Package listing holds the filter, paging and live-refresh machinery shared
// by the order and invoice lists.
package listing

import (
	"net/http"
	"strconv"
	"strings"
)

// DefaultPageSize is used when a caller does not ask for a page size.
const DefaultPageSize = 10

// MaxPageSize bounds a single page; exports use it to fetch everything.
const MaxPageSize = 10000

// Filter is the page-local filter set of a list view.
type Filter struct {
	Search   string `json:"search,omitempty"`
	Supplier string `json:"supplier,omitempty"`
	Status   string `json:"status,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// Normalize trims every field; empty fields are unset.
func (f Filter) Normalize() Filter {
	return Filter{
		Search:   strings.TrimSpace(f.Search),
		Supplier: strings.TrimSpace(f.Supplier),
		Status:   strings.TrimSpace(f.Status),
		DateFrom: strings.TrimSpace(f.DateFrom),
		DateTo:   strings.TrimSpace(f.DateTo),
	}
}

// Empty reports whether no field is set.
func (f Filter) Empty() bool {
	return f.Normalize() == Filter{}
}

// Query is a page request: 1-indexed page, page size, filters and sort.
type Query struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Filter   Filter `json:"filters"`
	SortBy   string `json:"sort_by,omitempty"`
	SortAsc  bool   `json:"sort_asc,omitempty"`
}

// Normalize clamps paging to valid values and trims filters.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.Filter = q.Filter.Normalize()
	q.SortBy = strings.TrimSpace(q.SortBy)
	return q
}

// Offset is the number of rows skipped before this page.
func (q Query) Offset() int {
	n := q.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Key serialises the normalised query. Two queries with equal keys always
// produce the same backend request.
func (q Query) Key() string {
	n := q.Normalize()
	parts := []string{
		"p=" + strconv.Itoa(n.Page),
		"n=" + strconv.Itoa(n.PageSize),
		"q=" + strconv.Quote(n.Filter.Search),
		"s=" + strconv.Quote(n.Filter.Supplier),
		"st=" + strconv.Quote(n.Filter.Status),
		"from=" + strconv.Quote(n.Filter.DateFrom),
		"to=" + strconv.Quote(n.Filter.DateTo),
		"sort=" + strconv.Quote(n.SortBy),
		"asc=" + strconv.FormatBool(n.SortAsc),
	}
	return strings.Join(parts, "&")
}

// FromRequest reads a query from URL parameters:
// page, limit, search, supplier, status, date_from, date_to, sort, order.
func FromRequest(r *http.Request) Query {
	values := r.URL.Query()
	page, _ := strconv.Atoi(values.Get("page"))
	limit, _ := strconv.Atoi(values.Get("limit"))
	if limit == 0 {
		limit, _ = strconv.Atoi(values.Get("page_size"))
	}
	return Query{
		Page:     page,
		PageSize: limit,
		Filter: Filter{
			Search:   values.Get("search"),
			Supplier: values.Get("supplier"),
			Status:   values.Get("status"),
			DateFrom: values.Get("date_from"),
			DateTo:   values.Get("date_to"),
		},
		SortBy:  values.Get("sort"),
		SortAsc: strings.EqualFold(values.Get("order"), "asc"),
	}.Normalize()
}
