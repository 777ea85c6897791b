package listing

import "math"

// Page is one slice of a filtered list plus the pre-pagination total.
type Page[T any] struct {
	Items      []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// NewPage assembles page metadata for q. Items is never nil.
func NewPage[T any](items []T, total int, q Query) Page[T] {
	q = q.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		Limit:      q.PageSize,
		TotalPages: TotalPages(total, q.PageSize),
	}
}

// TotalPages is ceil(total/pageSize). A non-positive page size counts as the default.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if total <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}
