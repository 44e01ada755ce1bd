// Package feed keeps a paginated, reaction-bearing feed in sync with its
// backend. Reactions are shown as soon as the user makes them and are
// reconciled with the server afterwards; pages are fetched one at a time,
// either on refresh or when the reader nears the end of what is loaded.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HammerMeetNail/feedsync/internal/logging"
	"github.com/HammerMeetNail/feedsync/internal/models"
)

type Options[T any] struct {
	Accessor  Accessor[T]
	List      ListEndpoint[T]
	Reactions ReactionEndpoint
	Notifier  Notifier
	User      UserProvider
	PageSize  int
	Lookahead int
	Logger    *logging.Logger
	Now       func() time.Time
	// OnChange is called after every change to the items.
	OnChange func()
}

// Feed owns the state of one feed instance.
type Feed[T any] struct {
	store        *Store[T]
	cursor       *Cursor
	loading      *LoadingState
	orchestrator *Orchestrator[T]
	reconciler   *Reconciler[T]
	trigger      *Trigger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New[T any](opts Options[T]) (*Feed[T], error) {
	if opts.Accessor.ID == nil || opts.Accessor.Reactions == nil {
		return nil, errors.New("accessor id and reactions are required")
	}
	if opts.List == nil {
		return nil, errors.New("list endpoint is required")
	}
	if opts.Reactions == nil {
		return nil, errors.New("reaction endpoint is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = NewLogNotifier(opts.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed[T]{
		store:   NewStore(opts.Accessor, opts.OnChange),
		cursor:  NewCursor(),
		loading: NewLoadingState(),
		ctx:     ctx,
		cancel:  cancel,
	}
	f.orchestrator = NewOrchestrator(f.store, f.cursor, f.loading, opts.List, opts.Notifier, opts.PageSize, opts.Logger)
	f.reconciler = NewReconciler(f.store, f.loading, opts.Accessor, opts.Reactions, opts.Notifier, opts.User, opts.Now)
	f.trigger = NewTrigger(opts.Lookahead, f)
	return f, nil
}

func (f *Feed[T]) Refresh(ctx context.Context) FetchOutcome {
	return f.orchestrator.Fetch(ctx, ActionRefresh)
}

func (f *Feed[T]) LoadMore(ctx context.Context) FetchOutcome {
	return f.orchestrator.Fetch(ctx, ActionAppend)
}

func (f *Feed[T]) AddReaction(ctx context.Context, itemID, kind string) Outcome {
	return f.reconciler.AddReaction(ctx, itemID, kind)
}

func (f *Feed[T]) RemoveReaction(ctx context.Context, itemID string, reaction models.UserReaction) Outcome {
	return f.reconciler.RemoveReaction(ctx, itemID, reaction)
}

// OnItemObserved is called as the reader reaches the item at index. It
// reports whether a background append was started.
func (f *Feed[T]) OnItemObserved(index int) bool {
	return f.trigger.OnItemObserved(index, f.store.Len())
}

// RequestAppend starts an append in the background. Calls after Close are
// ignored.
func (f *Feed[T]) RequestAppend() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.orchestrator.Fetch(f.ctx, ActionAppend)
	}()
}

// Wait blocks until background appends have finished.
func (f *Feed[T]) Wait() {
	f.wg.Wait()
}

// Close cancels background appends and waits for them to return.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.cancel()
	f.wg.Wait()
}

func (f *Feed[T]) Items() []T {
	return f.store.Items()
}

func (f *Feed[T]) Find(id string) (T, bool) {
	return f.store.Find(id)
}

func (f *Feed[T]) Len() int {
	return f.store.Len()
}

func (f *Feed[T]) HasMore() bool {
	return f.cursor.HasMore(f.store.Len())
}

func (f *Feed[T]) Cursor() CursorState {
	return f.cursor.Snapshot()
}

// Loading lists the operations currently in flight.
func (f *Feed[T]) Loading() []string {
	return f.loading.Tags()
}

func (f *Feed[T]) Duplicates() []string {
	return f.store.Duplicates()
}
