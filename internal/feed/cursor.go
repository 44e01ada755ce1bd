package feed

import "sync"

// Cursor tracks page-number pagination for one feed.
type Cursor struct {
	mu         sync.Mutex
	page       int
	totalCount *int
}

type CursorState struct {
	Page       int
	TotalCount *int
}

func NewCursor() *Cursor {
	return &Cursor{}
}

// Reset forgets every committed page; the next page requested is 1.
func (c *Cursor) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = 0
	c.totalCount = nil
}

// NextPage returns the page to request next without committing it.
func (c *Cursor) NextPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page + 1
}

// Advance commits one page and records the server's total.
func (c *Cursor) Advance(totalCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := totalCount
	c.totalCount = &total
	c.page++
}

func (c *Cursor) HasMore(loaded int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalCount == nil || loaded < *c.totalCount
}

func (c *Cursor) Snapshot() CursorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := CursorState{Page: c.page}
	if c.totalCount != nil {
		total := *c.totalCount
		state.TotalCount = &total
	}
	return state
}
