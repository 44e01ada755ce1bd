package feed

import (
	"sort"
	"sync"
)

const TagFetching = "fetching"

func reactTag(itemID, kind string) string {
	return "react:" + itemID + ":" + kind
}

func unreactTag(reactionID string) string {
	return "unreact:" + reactionID
}

// LoadingState is the set of operations in flight on a feed. A tag can only
// be held once; an identical request made while it is held is dropped.
type LoadingState struct {
	mu   sync.Mutex
	tags map[string]struct{}
}

func NewLoadingState() *LoadingState {
	return &LoadingState{tags: make(map[string]struct{})}
}

// TryBegin adds tag and reports whether it was absent.
func (l *LoadingState) TryBegin(tag string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.tags[tag]; ok {
		return false
	}
	l.tags[tag] = struct{}{}
	return true
}

func (l *LoadingState) End(tag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tags, tag)
}

func (l *LoadingState) Has(tag string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.tags[tag]
	return ok
}

// Tags returns a sorted snapshot for display.
func (l *LoadingState) Tags() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.tags))
	for tag := range l.tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}
