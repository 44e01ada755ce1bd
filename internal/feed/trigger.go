package feed

const DefaultLookahead = 5

// Appender starts an append fetch without waiting for it.
type Appender interface {
	RequestAppend()
}

type AppenderFunc func()

func (f AppenderFunc) RequestAppend() {
	f()
}

// Trigger decides when the reader is close enough to the end of the loaded
// items to ask for the next page.
type Trigger struct {
	lookahead int
	appender  Appender
}

func NewTrigger(lookahead int, appender Appender) *Trigger {
	if lookahead <= 0 {
		lookahead = DefaultLookahead
	}
	return &Trigger{lookahead: lookahead, appender: appender}
}

func (t *Trigger) Lookahead() int {
	return t.lookahead
}

// ShouldLoad reports whether index is the last item before the final
// lookahead items, so with 20 loaded and a lookahead of 5 only index 14
// fires. Skipped indices do not fire.
func (t *Trigger) ShouldLoad(index, totalLoaded int) bool {
	return index == totalLoaded-t.lookahead-1
}

func (t *Trigger) OnItemObserved(index, totalLoaded int) bool {
	if !t.ShouldLoad(index, totalLoaded) {
		return false
	}
	t.appender.RequestAppend()
	return true
}
