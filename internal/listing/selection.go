package listing

import "sort"

// Selection is the set of row ids a view has ticked. It is not safe for
// concurrent use; the owning session serialises access.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{ids: make(map[string]struct{})}
}

// Toggle flips id and reports whether it is now selected.
func (s *Selection) Toggle(id string) bool {
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Set replaces the selection with ids.
func (s *Selection) Set(ids []string) {
	s.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = make(map[string]struct{})
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len is the number of selected ids.
func (s *Selection) Len() int { return len(s.ids) }

// IDs returns the selected ids sorted.
func (s *Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Retain drops every id not present in current and returns how many were
// dropped. Call it whenever the visible item set changes.
func (s *Selection) Retain(current []string) int {
	keep := make(map[string]struct{}, len(current))
	for _, id := range current {
		keep[id] = struct{}{}
	}
	dropped := 0
	for id := range s.ids {
		if _, ok := keep[id]; !ok {
			delete(s.ids, id)
			dropped++
		}
	}
	return dropped
}
