package feed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/HammerMeetNail/feedsync/internal/models"
)

var ignoreLocalID = cmpopts.IgnoreFields(models.UserReaction{}, "LocalID")

func newTestReconciler(store *Store[models.Activity], endpoint ReactionEndpoint, notifier Notifier) (*Reconciler[models.Activity], *LoadingState) {
	loading := NewLoadingState()
	r := NewReconciler(store, loading, ActivityAccessor, endpoint, notifier, StaticUser("me"), func() time.Time { return fixedNow })
	return r, loading
}

// blockingAdd returns an AddFunc that signals entered and waits for release.
func blockingAdd(entered chan<- struct{}, release <-chan struct{}, reply models.UserReaction, err error) func(ctx context.Context, itemID, kind string) (models.UserReaction, error) {
	return func(ctx context.Context, itemID, kind string) (models.UserReaction, error) {
		entered <- struct{}{}
		<-release
		return reply, err
	}
}

func TestReconciler_AddReaction_OptimisticThenConfirm(t *testing.T) {
	store := newActivityStore(activity("item", map[string]int{"❤️": 2}))
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	confirmed := models.UserReaction{ID: "r-42", Kind: "❤️", CreatedAt: fixedNow}
	endpoint := &fakeReactions{AddFunc: blockingAdd(entered, release, confirmed, nil)}
	r, loading := newTestReconciler(store, endpoint, nil)

	done := make(chan Outcome, 1)
	go func() { done <- r.AddReaction(context.Background(), "item", "❤️") }()
	<-entered

	during, _ := store.Find("item")
	if during.Reactions.Count("❤️") != 3 {
		t.Fatalf("expected optimistic count 3, got %d", during.Reactions.Count("❤️"))
	}
	if len(during.Reactions.Mine) != 1 || !during.Reactions.Mine[0].IsPending() {
		t.Fatalf("expected one pending reaction, got %+v", during.Reactions.Mine)
	}
	if !strings.HasPrefix(during.Reactions.Mine[0].LocalID, models.LocalIDPrefix) {
		t.Fatalf("expected local correlation id, got %q", during.Reactions.Mine[0].LocalID)
	}
	if !loading.Has(reactTag("item", "❤️")) {
		t.Fatal("expected reaction to be marked in flight")
	}

	close(release)
	if got := <-done; got != OutcomeConfirmed {
		t.Fatalf("expected confirmed, got %v", got)
	}

	after, _ := store.Find("item")
	want := models.ReactionSet{
		Totals: map[string]int{"❤️": 3},
		Mine:   []models.UserReaction{{ID: "r-42", UserID: "me", Kind: "❤️", CreatedAt: fixedNow}},
	}
	if diff := cmp.Diff(want, after.Reactions); diff != "" {
		t.Fatalf("unexpected reactions (-want +got):\n%s", diff)
	}
	if len(loading.Tags()) != 0 {
		t.Fatalf("expected no operations in flight, got %v", loading.Tags())
	}
}

func TestReconciler_AddReaction_RollsBackOnFailure(t *testing.T) {
	store := newActivityStore(activity("item", map[string]int{"❤️": 2}))
	notifier := &recordingNotifier{}
	endpoint := &fakeReactions{AddFunc: func(ctx context.Context, itemID, kind string) (models.UserReaction, error) {
		return models.UserReaction{}, errors.New("503")
	}}
	r, _ := newTestReconciler(store, endpoint, notifier)

	if got := r.AddReaction(context.Background(), "item", "❤️"); got != OutcomeRolledBack {
		t.Fatalf("expected rolled back, got %v", got)
	}

	after, _ := store.Find("item")
	want := models.ReactionSet{Totals: map[string]int{"❤️": 2}, Mine: []models.UserReaction{}}
	if diff := cmp.Diff(want, after.Reactions, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected reactions (-want +got):\n%s", diff)
	}

	notices := notifier.all()
	if len(notices) != 1 || notices[0].Op != "add_reaction" || notices[0].ItemID != "item" || notices[0].Kind != "❤️" {
		t.Fatalf("unexpected notices: %+v", notices)
	}
}

func TestReconciler_AddReaction_RollbackDropsZeroKey(t *testing.T) {
	store := newActivityStore(activity("item", nil))
	endpoint := &fakeReactions{AddFunc: func(ctx context.Context, itemID, kind string) (models.UserReaction, error) {
		return models.UserReaction{}, errors.New("boom")
	}}
	r, _ := newTestReconciler(store, endpoint, nil)

	r.AddReaction(context.Background(), "item", "👍")

	after, _ := store.Find("item")
	if _, ok := after.Reactions.Totals["👍"]; ok {
		t.Fatalf("expected 👍 key removed, got %+v", after.Reactions.Totals)
	}
}

func TestReconciler_AddReaction_MissingIDIsFailure(t *testing.T) {
	store := newActivityStore(activity("item", nil))
	endpoint := &fakeReactions{AddFunc: func(ctx context.Context, itemID, kind string) (models.UserReaction, error) {
		return models.UserReaction{Kind: kind}, nil
	}}
	r, _ := newTestReconciler(store, endpoint, nil)

	if got := r.AddReaction(context.Background(), "item", "👍"); got != OutcomeRolledBack {
		t.Fatalf("expected rolled back, got %v", got)
	}
	after, _ := store.Find("item")
	if len(after.Reactions.Mine) != 0 {
		t.Fatalf("expected no reactions left, got %+v", after.Reactions.Mine)
	}
}

func TestReconciler_AddReaction_AbsentItemSkipsNetwork(t *testing.T) {
	store := newActivityStore(activity("item", nil))
	endpoint := &fakeReactions{}
	r, loading := newTestReconciler(store, endpoint, nil)

	if got := r.AddReaction(context.Background(), "gone", "👍"); got != OutcomeSkipped {
		t.Fatalf("expected skipped, got %v", got)
	}
	if endpoint.addCalls() != 0 {
		t.Fatalf("expected no network call, got %d", endpoint.addCalls())
	}
	if len(loading.Tags()) != 0 {
		t.Fatalf("expected tag released, got %v", loading.Tags())
	}
}

func TestReconciler_AddReaction_IdenticalInFlightIsIgnored(t *testing.T) {
	store := newActivityStore(activity("item", nil))
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	endpoint := &fakeReactions{AddFunc: blockingAdd(entered, release, models.UserReaction{ID: "r1", Kind: "👍"}, nil)}
	r, _ := newTestReconciler(store, endpoint, nil)

	done := make(chan Outcome, 1)
	go func() { done <- r.AddReaction(context.Background(), "item", "👍") }()
	<-entered

	if got := r.AddReaction(context.Background(), "item", "👍"); got != OutcomeSkipped {
		t.Fatalf("expected duplicate tap to be skipped, got %v", got)
	}
	close(release)
	if got := <-done; got != OutcomeConfirmed {
		t.Fatalf("expected first add confirmed, got %v", got)
	}

	after, _ := store.Find("item")
	if after.Reactions.Count("👍") != 1 || len(after.Reactions.Mine) != 1 {
		t.Fatalf("expected exactly one reaction, got %+v", after.Reactions)
	}
	if endpoint.addCalls() != 1 {
		t.Fatalf("expected 1 network call, got %d", endpoint.addCalls())
	}
}

func TestReconciler_AddReaction_DifferentKindsRunConcurrently(t *testing.T) {
	store := newActivityStore(activity("item", nil))
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	endpoint := &fakeReactions{AddFunc: func(ctx context.Context, itemID, kind string) (models.UserReaction, error) {
		entered <- struct{}{}
		<-release
		if kind == "🔥" {
			return models.UserReaction{}, errors.New("rejected")
		}
		return models.UserReaction{ID: "ok", Kind: kind}, nil
	}}
	r, _ := newTestReconciler(store, endpoint, nil)

	var wg sync.WaitGroup
	outcomes := make(map[string]Outcome)
	var outMu sync.Mutex
	for _, kind := range []string{"👍", "🔥"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := r.AddReaction(context.Background(), "item", kind)
			outMu.Lock()
			outcomes[kind] = o
			outMu.Unlock()
		}()
	}
	<-entered
	<-entered

	during, _ := store.Find("item")
	if during.Reactions.Count("👍") != 1 || during.Reactions.Count("🔥") != 1 {
		t.Fatalf("expected both reactions shown while in flight, got %+v", during.Reactions.Totals)
	}

	close(release)
	wg.Wait()

	if outcomes["👍"] != OutcomeConfirmed || outcomes["🔥"] != OutcomeRolledBack {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
	after, _ := store.Find("item")
	want := models.ReactionSet{
		Totals: map[string]int{"👍": 1},
		Mine:   []models.UserReaction{{ID: "ok", UserID: "me", Kind: "👍", CreatedAt: fixedNow}},
	}
	if diff := cmp.Diff(want, after.Reactions); diff != "" {
		t.Fatalf("unexpected reactions (-want +got):\n%s", diff)
	}
}

func TestReconciler_AddReaction_RefreshDuringFlightKeepsServerCopy(t *testing.T) {
	store := newActivityStore(activity("item", nil))
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	endpoint := &fakeReactions{AddFunc: blockingAdd(entered, release, models.UserReaction{ID: "r1", Kind: "👍"}, nil)}
	r, _ := newTestReconciler(store, endpoint, nil)

	done := make(chan Outcome, 1)
	go func() { done <- r.AddReaction(context.Background(), "item", "👍") }()
	<-entered

	serverCopy := activity("item", map[string]int{"👍": 1}, models.UserReaction{ID: "r1", Kind: "👍"})
	store.ReplaceAll([]models.Activity{serverCopy})

	close(release)
	<-done

	after, _ := store.Find("item")
	if diff := cmp.Diff(serverCopy.Reactions, after.Reactions); diff != "" {
		t.Fatalf("expected refreshed copy untouched (-want +got):\n%s", diff)
	}
}

func TestReconciler_AddReaction_RefreshWithoutReactionAppliesServerCopy(t *testing.T) {
	store := newActivityStore(activity("item", map[string]int{"👍": 1}))
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	endpoint := &fakeReactions{AddFunc: blockingAdd(entered, release, models.UserReaction{ID: "r1", Kind: "🔥"}, nil)}
	r, _ := newTestReconciler(store, endpoint, nil)

	done := make(chan Outcome, 1)
	go func() { done <- r.AddReaction(context.Background(), "item", "🔥") }()
	<-entered

	during, _ := store.Find("item")
	if diff := cmp.Diff(map[string]int{"👍": 1, "🔥": 1}, during.Reactions.Totals); diff != "" {
		t.Fatalf("unexpected optimistic totals (-want +got):\n%s", diff)
	}

	// Snapshot taken before the server stored the reaction.
	store.ReplaceAll([]models.Activity{activity("item", map[string]int{"👍": 1})})

	close(release)
	if got := <-done; got != OutcomeConfirmed {
		t.Fatalf("expected confirmed, got %v", got)
	}

	after, _ := store.Find("item")
	want := models.ReactionSet{
		Totals: map[string]int{"👍": 1, "🔥": 1},
		Mine:   []models.UserReaction{{ID: "r1", Kind: "🔥", UserID: "me", CreatedAt: fixedNow}},
	}
	if diff := cmp.Diff(want, after.Reactions, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected reactions after confirm (-want +got):\n%s", diff)
	}
}

func TestReconciler_RemoveReaction_Success(t *testing.T) {
	mine := models.UserReaction{ID: "r1", Kind: "🎉", CreatedAt: fixedNow}
	store := newActivityStore(activity("item", map[string]int{"🎉": 3}, mine))
	endpoint := &fakeReactions{}
	r, _ := newTestReconciler(store, endpoint, nil)

	if got := r.RemoveReaction(context.Background(), "item", mine); got != OutcomeConfirmed {
		t.Fatalf("expected confirmed, got %v", got)
	}
	after, _ := store.Find("item")
	want := models.ReactionSet{Totals: map[string]int{"🎉": 2}}
	if diff := cmp.Diff(want, after.Reactions, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected reactions (-want +got):\n%s", diff)
	}
	if len(endpoint.removed) != 1 || endpoint.removed[0] != "r1" {
		t.Fatalf("expected remove call for r1, got %v", endpoint.removed)
	}
}

func TestReconciler_RemoveReaction_OptimisticThenRestore(t *testing.T) {
	first := models.UserReaction{ID: "r1", Kind: "🎉", CreatedAt: fixedNow}
	second := models.UserReaction{ID: "r2", Kind: "⭐", CreatedAt: fixedNow}
	store := newActivityStore(activity("item", map[string]int{"🎉": 1, "⭐": 2}, first, second))
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	notifier := &recordingNotifier{}
	endpoint := &fakeReactions{RemoveFunc: func(ctx context.Context, reactionID string) error {
		entered <- struct{}{}
		<-release
		return errors.New("forbidden")
	}}
	r, _ := newTestReconciler(store, endpoint, notifier)

	done := make(chan Outcome, 1)
	go func() { done <- r.RemoveReaction(context.Background(), "item", first) }()
	<-entered

	during, _ := store.Find("item")
	if _, ok := during.Reactions.Totals["🎉"]; ok || len(during.Reactions.Mine) != 1 {
		t.Fatalf("expected 🎉 hidden while in flight, got %+v", during.Reactions)
	}

	close(release)
	if got := <-done; got != OutcomeRolledBack {
		t.Fatalf("expected rolled back, got %v", got)
	}

	after, _ := store.Find("item")
	want := models.ReactionSet{
		Totals: map[string]int{"🎉": 1, "⭐": 2},
		Mine:   []models.UserReaction{first, second},
	}
	if diff := cmp.Diff(want, after.Reactions); diff != "" {
		t.Fatalf("unexpected reactions (-want +got):\n%s", diff)
	}
	if notices := notifier.all(); len(notices) != 1 || notices[0].Op != "remove_reaction" {
		t.Fatalf("unexpected notices: %+v", notices)
	}
}

func TestReconciler_RemoveReaction_PendingIsSkipped(t *testing.T) {
	store := newActivityStore(activity("item", nil))
	r, _ := newTestReconciler(store, &fakeReactions{}, nil)

	pending := models.NewPendingReaction("👍", "me", fixedNow)
	if got := r.RemoveReaction(context.Background(), "item", pending); got != OutcomeSkipped {
		t.Fatalf("expected skipped, got %v", got)
	}
}

func TestReconciler_RemoveReaction_UnknownReactionIsSkipped(t *testing.T) {
	store := newActivityStore(activity("item", nil))
	endpoint := &fakeReactions{}
	r, _ := newTestReconciler(store, endpoint, nil)

	if got := r.RemoveReaction(context.Background(), "item", models.UserReaction{ID: "nope", Kind: "👍"}); got != OutcomeSkipped {
		t.Fatalf("expected skipped, got %v", got)
	}
	if len(endpoint.removed) != 0 {
		t.Fatalf("expected no network call, got %v", endpoint.removed)
	}
}

func TestReconciler_NotifierPanicIsContained(t *testing.T) {
	store := newActivityStore(activity("item", nil))
	endpoint := &fakeReactions{AddFunc: func(ctx context.Context, itemID, kind string) (models.UserReaction, error) {
		return models.UserReaction{}, errors.New("boom")
	}}
	panicky := NotifierFunc(func(ctx context.Context, n Notice) { panic("toast view gone") })
	r, _ := newTestReconciler(store, endpoint, panicky)

	if got := r.AddReaction(context.Background(), "item", "👍"); got != OutcomeRolledBack {
		t.Fatalf("expected rolled back, got %v", got)
	}
}
