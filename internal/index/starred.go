package index

import "sort"

// Starred tracks starred message ids.
type Starred struct {
	ids map[int64]struct{}
}

// NewStarred returns an empty set.
func NewStarred() *Starred {
	return &Starred{ids: make(map[int64]struct{})}
}

// Add marks ids as starred.
func (s *Starred) Add(ids []int64) {
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// Remove unmarks ids.
func (s *Starred) Remove(ids []int64) {
	for _, id := range ids {
		delete(s.ids, id)
	}
}

// Has reports whether id is starred.
func (s *Starred) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Count returns the number of starred messages.
func (s *Starred) Count() int { return len(s.ids) }

// IDs returns the starred ids in ascending order.
func (s *Starred) IDs() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
