package feed

import (
	"context"
	"errors"
	"time"

	"github.com/HammerMeetNail/feedsync/internal/models"
)

var errMissingReactionID = errors.New("server returned reaction without id")

// ReactionEndpoint is the remote side of reaction mutations.
type ReactionEndpoint interface {
	AddReaction(ctx context.Context, itemID, kind string) (models.UserReaction, error)
	RemoveReaction(ctx context.Context, reactionID string) error
}

// Outcome is how a reaction action ended.
type Outcome int

const (
	// OutcomeSkipped means nothing was applied: the item was absent, the
	// reaction had no server id yet, or an identical action was in flight.
	OutcomeSkipped Outcome = iota
	OutcomeConfirmed
	OutcomeRolledBack
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Reconciler applies reactions to the store before the server answers, then
// confirms or rolls them back.
type Reconciler[T any] struct {
	store     *Store[T]
	loading   *LoadingState
	endpoint  ReactionEndpoint
	notifier  Notifier
	users     UserProvider
	now       func() time.Time
	reactions func(*T) *models.ReactionSet
}

func NewReconciler[T any](store *Store[T], loading *LoadingState, acc Accessor[T], endpoint ReactionEndpoint, notifier Notifier, users UserProvider, now func() time.Time) *Reconciler[T] {
	if now == nil {
		now = time.Now
	}
	if users == nil {
		users = StaticUser("")
	}
	return &Reconciler[T]{
		store:     store,
		loading:   loading,
		endpoint:  endpoint,
		notifier:  notifier,
		users:     users,
		now:       now,
		reactions: acc.Reactions,
	}
}

// AddReaction shows kind on itemID immediately and then asks the server to
// record it. Failures are rolled back and reported through the notifier.
func (r *Reconciler[T]) AddReaction(ctx context.Context, itemID, kind string) Outcome {
	tag := reactTag(itemID, kind)
	if !r.loading.TryBegin(tag) {
		return OutcomeSkipped
	}
	defer r.loading.End(tag)

	pending := models.NewPendingReaction(kind, r.users.CurrentUserID(), r.now())
	if !r.store.Mutate(itemID, func(item *T) { r.reactions(item).Apply(pending) }) {
		return OutcomeSkipped
	}

	confirmed, err := r.endpoint.AddReaction(ctx, itemID, kind)
	if err == nil && confirmed.ID == "" {
		err = errMissingReactionID
	}
	if err != nil {
		r.store.Mutate(itemID, func(item *T) { r.reactions(item).RetractPending(pending.LocalID) })
		notify(ctx, r.notifier, Notice{
			Op:      "add_reaction",
			Message: "Couldn't add reaction",
			ItemID:  itemID,
			Kind:    kind,
			Err:     err,
		})
		return OutcomeRolledBack
	}

	if confirmed.UserID == "" {
		confirmed.UserID = pending.UserID
	}
	if confirmed.CreatedAt.IsZero() {
		confirmed.CreatedAt = pending.CreatedAt
	}
	// A refresh may have replaced the item meanwhile. If the refreshed copy
	// predates the insert, the confirmed reaction is added to it.
	r.store.Mutate(itemID, func(item *T) {
		set := r.reactions(item)
		if !set.Confirm(pending.LocalID, confirmed) && !set.HasConfirmed(confirmed.ID) {
			set.Apply(confirmed)
		}
	})
	return OutcomeConfirmed
}

// RemoveReaction hides a confirmed reaction immediately and then asks the
// server to delete it, restoring it if the server refuses.
func (r *Reconciler[T]) RemoveReaction(ctx context.Context, itemID string, reaction models.UserReaction) Outcome {
	if reaction.IsPending() {
		return OutcomeSkipped
	}
	tag := unreactTag(reaction.ID)
	if !r.loading.TryBegin(tag) {
		return OutcomeSkipped
	}
	defer r.loading.End(tag)

	var (
		removed models.UserReaction
		at      int
		found   bool
	)
	r.store.Mutate(itemID, func(item *T) {
		removed, at, found = r.reactions(item).RetractConfirmed(reaction.ID)
	})
	if !found {
		return OutcomeSkipped
	}

	if err := r.endpoint.RemoveReaction(ctx, reaction.ID); err != nil {
		r.store.Mutate(itemID, func(item *T) {
			set := r.reactions(item)
			if set.HasConfirmed(removed.ID) {
				return
			}
			set.Restore(removed, at)
		})
		notify(ctx, r.notifier, Notice{
			Op:      "remove_reaction",
			Message: "Couldn't remove reaction",
			ItemID:  itemID,
			Kind:    removed.Kind,
			Err:     err,
		})
		return OutcomeRolledBack
	}
	return OutcomeConfirmed
}
