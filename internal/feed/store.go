package feed

import (
	"sync"

	"github.com/HammerMeetNail/feedsync/internal/models"
)

// Accessor tells the engine how to read identity and reactions from T.
type Accessor[T any] struct {
	ID        func(T) string
	Reactions func(*T) *models.ReactionSet
}

// ActivityAccessor is the Accessor for models.Activity feeds.
var ActivityAccessor = Accessor[models.Activity]{
	ID:        func(a models.Activity) string { return a.ID },
	Reactions: func(a *models.Activity) *models.ReactionSet { return &a.Reactions },
}

// Store is an ordered collection of feed items keyed by id. It owns its
// values: everything handed in or out is copied, including the nested
// ReactionSet.
type Store[T any] struct {
	mu       sync.RWMutex
	acc      Accessor[T]
	items    []T
	index    map[string]int
	onChange func()
}

func NewStore[T any](acc Accessor[T], onChange func()) *Store[T] {
	return &Store[T]{
		acc:      acc,
		index:    make(map[string]int),
		onChange: onChange,
	}
}

func (s *Store[T]) ReplaceAll(items []T) {
	s.mu.Lock()
	s.items = make([]T, 0, len(items))
	s.index = make(map[string]int, len(items))
	s.appendLocked(items)
	s.mu.Unlock()
	s.changed()
}

// Append adds items after the current contents. Items are not deduplicated;
// pages are expected not to overlap.
func (s *Store[T]) Append(items []T) {
	if len(items) == 0 {
		return
	}
	s.mu.Lock()
	s.appendLocked(items)
	s.mu.Unlock()
	s.changed()
}

func (s *Store[T]) appendLocked(items []T) {
	for _, item := range items {
		id := s.acc.ID(item)
		if _, ok := s.index[id]; !ok {
			s.index[id] = len(s.items)
		}
		s.items = append(s.items, s.clone(item))
	}
}

// Mutate applies fn to the first item with id while holding the write lock.
// fn must not change the item's id. It reports false when id is absent.
func (s *Store[T]) Mutate(id string, fn func(item *T)) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if ok {
		fn(&s.items[i])
	}
	s.mu.Unlock()
	if ok {
		s.changed()
	}
	return ok
}

func (s *Store[T]) Find(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		var zero T
		return zero, false
	}
	return s.clone(s.items[i]), true
}

func (s *Store[T]) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.index[id]; ok {
		return i
	}
	return -1
}

func (s *Store[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	for i, item := range s.items {
		out[i] = s.clone(item)
	}
	return out
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Duplicates returns ids held more than once, in first-seen order.
func (s *Store[T]) Duplicates() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]int, len(s.items))
	var dups []string
	for _, item := range s.items {
		id := s.acc.ID(item)
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	return dups
}

func (s *Store[T]) clone(item T) T {
	if s.acc.Reactions != nil {
		rs := s.acc.Reactions(&item)
		*rs = rs.Clone()
	}
	return item
}

func (s *Store[T]) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
