package feed

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/HammerMeetNail/feedsync/internal/models"
)

func ids(items []models.Activity) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestStore_ReplaceAllDiscardsPrevious(t *testing.T) {
	s := newActivityStore(activity("a", nil), activity("b", nil))
	s.ReplaceAll([]models.Activity{activity("c", nil)})

	if diff := cmp.Diff([]string{"c"}, ids(s.Items())); diff != "" {
		t.Fatalf("unexpected items (-want +got):\n%s", diff)
	}
	if _, ok := s.Find("a"); ok {
		t.Fatal("expected a to be gone")
	}
}

func TestStore_AppendKeepsOrderWithoutDedup(t *testing.T) {
	s := newActivityStore(activity("a", nil), activity("b", nil))
	s.Append([]models.Activity{activity("b", nil), activity("c", nil)})

	if diff := cmp.Diff([]string{"a", "b", "b", "c"}, ids(s.Items())); diff != "" {
		t.Fatalf("unexpected items (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, s.Duplicates()); diff != "" {
		t.Fatalf("unexpected duplicates (-want +got):\n%s", diff)
	}
	if s.IndexOf("b") != 1 {
		t.Fatalf("expected first b at 1, got %d", s.IndexOf("b"))
	}
}

func TestStore_MutateInPlace(t *testing.T) {
	s := newActivityStore(activity("a", nil), activity("b", nil), activity("c", nil))

	ok := s.Mutate("b", func(a *models.Activity) {
		a.Reactions.Increment("🔥")
	})
	if !ok {
		t.Fatal("expected mutate to find b")
	}
	got, _ := s.Find("b")
	if got.Reactions.Count("🔥") != 1 {
		t.Fatalf("expected 🔥 count 1, got %+v", got.Reactions)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(s.Items())); diff != "" {
		t.Fatalf("order changed (-want +got):\n%s", diff)
	}
}

func TestStore_MutateAbsentIsNoop(t *testing.T) {
	changes := 0
	s := NewStore(ActivityAccessor, func() { changes++ })
	s.ReplaceAll([]models.Activity{activity("a", nil)})
	changes = 0

	called := false
	if s.Mutate("missing", func(a *models.Activity) { called = true }) {
		t.Fatal("expected mutate to report missing item")
	}
	if called || changes != 0 {
		t.Fatalf("expected no callback and no change notification, got called=%v changes=%d", called, changes)
	}
}

func TestStore_ReadsAreCopies(t *testing.T) {
	s := newActivityStore(activity("a", map[string]int{"👍": 1}, models.UserReaction{ID: "r1", Kind: "👍"}))

	got, _ := s.Find("a")
	got.Reactions.Increment("👍")
	got.Reactions.Mine[0].ID = "changed"

	items := s.Items()
	items[0].Reactions.Totals["👍"] = 99

	again, _ := s.Find("a")
	if again.Reactions.Count("👍") != 1 || again.Reactions.Mine[0].ID != "r1" {
		t.Fatalf("expected store to be isolated from callers, got %+v", again.Reactions)
	}
}

func TestStore_InputIsCopied(t *testing.T) {
	input := []models.Activity{activity("a", map[string]int{"👍": 1})}
	s := newActivityStore(input...)
	input[0].Reactions.Totals["👍"] = 7

	got, _ := s.Find("a")
	if got.Reactions.Count("👍") != 1 {
		t.Fatalf("expected store copy to be unaffected, got %d", got.Reactions.Count("👍"))
	}
}

func TestStore_OnChangeFires(t *testing.T) {
	changes := 0
	s := NewStore(ActivityAccessor, func() { changes++ })
	s.ReplaceAll(activities(0, 2))
	s.Append(activities(2, 3))
	s.Append(nil)
	s.Mutate("a0", func(a *models.Activity) {})

	if changes != 3 {
		t.Fatalf("expected 3 change notifications, got %d", changes)
	}
}
