package feed

import (
	"bytes"
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/HammerMeetNail/feedsync/internal/logging"
	"github.com/HammerMeetNail/feedsync/internal/models"
)

func newTestFeed(t *testing.T, list *fakeList, reactions *fakeReactions, opts ...func(*Options[models.Activity])) *Feed[models.Activity] {
	t.Helper()
	o := Options[models.Activity]{
		Accessor:  ActivityAccessor,
		List:      list,
		Reactions: reactions,
		Notifier:  &recordingNotifier{},
		User:      StaticUser("me"),
		PageSize:  10,
		Logger:    logging.New().SetOutput(&bytes.Buffer{}),
		Now:       func() time.Time { return fixedNow },
	}
	for _, fn := range opts {
		fn(&o)
	}
	f, err := New(o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(f.Close)
	return f
}

func TestNew_RequiresDependencies(t *testing.T) {
	tests := []struct {
		name string
		opts Options[models.Activity]
	}{
		{name: "no accessor", opts: Options[models.Activity]{List: &fakeList{}, Reactions: &fakeReactions{}}},
		{name: "no list", opts: Options[models.Activity]{Accessor: ActivityAccessor, Reactions: &fakeReactions{}}},
		{name: "no reactions", opts: Options[models.Activity]{Accessor: ActivityAccessor, List: &fakeList{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFeed_AddReactionScenario(t *testing.T) {
	list := &fakeList{ListFunc: func(ctx context.Context, page, limit int) (models.ListResponse[models.Activity], error) {
		return models.ListResponse[models.Activity]{
			Data:       []models.Activity{activity("A", map[string]int{})},
			Pagination: models.Pagination{Page: 1, TotalCount: 1},
		}, nil
	}}
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	reactions := &fakeReactions{AddFunc: blockingAdd(entered, release, models.UserReaction{ID: "R1", Kind: "👍", CreatedAt: fixedNow}, nil)}
	f := newTestFeed(t, list, reactions)

	if got := f.Refresh(context.Background()); got != FetchLoaded {
		t.Fatalf("expected refresh loaded, got %v", got)
	}

	done := make(chan Outcome, 1)
	go func() { done <- f.AddReaction(context.Background(), "A", "👍") }()
	<-entered

	during, _ := f.Find("A")
	if diff := cmp.Diff(map[string]int{"👍": 1}, during.Reactions.Totals); diff != "" {
		t.Fatalf("unexpected totals while pending (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"react:A:👍"}, f.Loading()); diff != "" {
		t.Fatalf("unexpected loading tags (-want +got):\n%s", diff)
	}

	close(release)
	<-done

	after, _ := f.Find("A")
	want := []models.UserReaction{{ID: "R1", UserID: "me", Kind: "👍", CreatedAt: fixedNow}}
	if diff := cmp.Diff(want, after.Reactions.Mine); diff != "" {
		t.Fatalf("unexpected own reactions (-want +got):\n%s", diff)
	}
	if after.Reactions.Count("👍") != 1 {
		t.Fatalf("expected total 1, got %d", after.Reactions.Count("👍"))
	}
	if err := after.Reactions.Validate(); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func TestFeed_OnItemObservedLoadsNextPage(t *testing.T) {
	list := &fakeList{ListFunc: pagedList(35)}
	f := newTestFeed(t, list, &fakeReactions{}, func(o *Options[models.Activity]) {
		o.PageSize = 20
	})

	f.Refresh(context.Background())
	if f.OnItemObserved(13) {
		t.Fatal("expected index 13 not to trigger")
	}
	if !f.OnItemObserved(14) {
		t.Fatal("expected index 14 to trigger")
	}
	f.Wait()

	if f.Len() != 35 {
		t.Fatalf("expected 35 items, got %d", f.Len())
	}
	if f.HasMore() {
		t.Fatal("expected no more pages")
	}
	if diff := cmp.Diff([]int{1, 2}, list.calls()); diff != "" {
		t.Fatalf("unexpected pages (-want +got):\n%s", diff)
	}
	if len(f.Duplicates()) != 0 {
		t.Fatalf("expected no duplicates, got %v", f.Duplicates())
	}
}

func TestFeed_ScrollingLoadsEverything(t *testing.T) {
	list := &fakeList{ListFunc: pagedList(47)}
	f := newTestFeed(t, list, &fakeReactions{})

	f.Refresh(context.Background())
	for i := 0; i < f.Len(); i++ {
		if f.OnItemObserved(i) {
			f.Wait()
		}
	}

	if f.Len() != 47 {
		t.Fatalf("expected 47 items, got %d", f.Len())
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, list.calls()); diff != "" {
		t.Fatalf("unexpected pages (-want +got):\n%s", diff)
	}
}

func TestFeed_CloseCancelsBackgroundAppend(t *testing.T) {
	started := make(chan struct{}, 1)
	list := &fakeList{ListFunc: func(ctx context.Context, page, limit int) (models.ListResponse[models.Activity], error) {
		started <- struct{}{}
		<-ctx.Done()
		return models.ListResponse[models.Activity]{}, ctx.Err()
	}}
	notifier := &recordingNotifier{}
	f := newTestFeed(t, list, &fakeReactions{}, func(o *Options[models.Activity]) {
		o.Notifier = notifier
	})

	f.RequestAppend()
	<-started
	f.Close()

	if len(notifier.all()) != 0 {
		t.Fatalf("expected no notices after close, got %+v", notifier.all())
	}
	f.RequestAppend()
	if len(list.calls()) != 1 {
		t.Fatalf("expected append after close to be ignored, got %d calls", len(list.calls()))
	}
}

func TestFeed_OnChangeCalled(t *testing.T) {
	var changes atomic.Int32
	list := &fakeList{ListFunc: pagedList(3)}
	f := newTestFeed(t, list, &fakeReactions{}, func(o *Options[models.Activity]) {
		o.OnChange = func() { changes.Add(1) }
	})

	f.Refresh(context.Background())
	if changes.Load() != 1 {
		t.Fatalf("expected one change, got %d", changes.Load())
	}
	if state := f.Cursor(); state.Page != 1 || state.TotalCount == nil || *state.TotalCount != 3 {
		t.Fatalf("unexpected cursor state: %+v", state)
	}
}
