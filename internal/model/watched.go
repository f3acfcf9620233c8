package model

import (
	"sort"
)

// WatchedIDSet is the deduplicated set of item ids found in a user's collection.
type WatchedIDSet map[int]struct{}

func NewWatchedIDSet(ids ...int) WatchedIDSet {
	s := make(WatchedIDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s WatchedIDSet) Add(id int) {
	s[id] = struct{}{}
}

func (s WatchedIDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

func (s WatchedIDSet) Len() int {
	return len(s)
}

// IDs returns the ids in ascending order.
func (s WatchedIDSet) IDs() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// CollectionFetch is the result of walking every page of a user's collection.
type CollectionFetch struct {
	UserID string
	IDs    WatchedIDSet
	Total  int
	// Pages is the number of pages requested, including the first one.
	Pages int
	// FailedOffsets lists the offsets of pages that could not be fetched.
	FailedOffsets []int
}

func (f *CollectionFetch) Partial() bool {
	return len(f.FailedOffsets) > 0
}
