package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var AllowedKinds = []string{"🎉", "👍", "🔥", "❤️", "⭐", "😋"}

// LocalIDPrefix marks correlation ids minted on the device. Server ids are
// bare UUIDs, so the two never collide.
const LocalIDPrefix = "local-"

// Reaction is the server-side row.
type Reaction struct {
	ID        uuid.UUID `json:"reactionId"`
	ItemID    uuid.UUID `json:"itemId"`
	UserID    uuid.UUID `json:"userId"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r Reaction) UserReaction() UserReaction {
	return UserReaction{
		ID:        r.ID.String(),
		UserID:    r.UserID.String(),
		Kind:      r.Kind,
		CreatedAt: r.CreatedAt,
	}
}

// UserReaction is one reaction placed by the current user. It is pending
// while ID is empty and LocalID holds the correlation id, and confirmed once
// the server has assigned ID.
type UserReaction struct {
	ID        string    `json:"reactionId,omitempty"`
	LocalID   string    `json:"-"`
	UserID    string    `json:"userId,omitempty"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewPendingReaction(kind, userID string, now time.Time) UserReaction {
	return UserReaction{
		LocalID:   LocalIDPrefix + uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		CreatedAt: now,
	}
}

func (r UserReaction) IsPending() bool {
	return r.ID == ""
}

type ReactionSummary struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// ReactionSet aggregates reactions on one feed item. Totals counts every
// user's reactions by kind; Mine lists the current user's own, in order.
type ReactionSet struct {
	Totals map[string]int `json:"totals"`
	Mine   []UserReaction `json:"mine"`
}

func (s ReactionSet) Clone() ReactionSet {
	out := ReactionSet{}
	if s.Totals != nil {
		out.Totals = make(map[string]int, len(s.Totals))
		for k, v := range s.Totals {
			out.Totals[k] = v
		}
	}
	if s.Mine != nil {
		out.Mine = make([]UserReaction, len(s.Mine))
		copy(out.Mine, s.Mine)
	}
	return out
}

func (s ReactionSet) Count(kind string) int {
	return s.Totals[kind]
}

func (s *ReactionSet) Increment(kind string) {
	if s.Totals == nil {
		s.Totals = make(map[string]int)
	}
	s.Totals[kind]++
}

// Decrement lowers the count for kind, dropping the key at zero.
func (s *ReactionSet) Decrement(kind string) {
	n, ok := s.Totals[kind]
	if !ok {
		return
	}
	if n <= 1 {
		delete(s.Totals, kind)
		return
	}
	s.Totals[kind] = n - 1
}

// Apply records r as placed by the current user.
func (s *ReactionSet) Apply(r UserReaction) {
	s.Mine = append(s.Mine, r)
	s.Increment(r.Kind)
}

// Restore puts r back at index at (clamped) and counts it again.
func (s *ReactionSet) Restore(r UserReaction, at int) {
	if at < 0 {
		at = 0
	}
	if at > len(s.Mine) {
		at = len(s.Mine)
	}
	s.Mine = append(s.Mine, UserReaction{})
	copy(s.Mine[at+1:], s.Mine[at:])
	s.Mine[at] = r
	s.Increment(r.Kind)
}

// Confirm swaps the pending entry carrying localID for confirmed. Totals only
// move if the server settled on a different kind. It reports false when no such pending entry exists.
func (s *ReactionSet) Confirm(localID string, confirmed UserReaction) bool {
	i := s.indexOf(func(r UserReaction) bool { return r.IsPending() && r.LocalID == localID })
	if i < 0 {
		return false
	}
	if confirmed.Kind == "" {
		confirmed.Kind = s.Mine[i].Kind
	}
	if confirmed.Kind != s.Mine[i].Kind {
		s.Decrement(s.Mine[i].Kind)
		s.Increment(confirmed.Kind)
	}
	confirmed.LocalID = ""
	s.Mine[i] = confirmed
	return true
}

// HasConfirmed reports whether a confirmed reaction with id is present.
func (s ReactionSet) HasConfirmed(id string) bool {
	return s.indexOf(func(r UserReaction) bool { return !r.IsPending() && r.ID == id }) >= 0
}

// RetractPending removes the pending entry carrying localID and uncounts it.
func (s *ReactionSet) RetractPending(localID string) (UserReaction, int, bool) {
	return s.retract(func(r UserReaction) bool { return r.IsPending() && r.LocalID == localID })
}

// RetractConfirmed removes the confirmed entry with the given server id and
// uncounts it.
func (s *ReactionSet) RetractConfirmed(id string) (UserReaction, int, bool) {
	return s.retract(func(r UserReaction) bool { return !r.IsPending() && r.ID == id })
}

func (s *ReactionSet) retract(match func(UserReaction) bool) (UserReaction, int, bool) {
	i := s.indexOf(match)
	if i < 0 {
		return UserReaction{}, -1, false
	}
	removed := s.Mine[i]
	s.Mine = append(s.Mine[:i], s.Mine[i+1:]...)
	s.Decrement(removed.Kind)
	return removed, i, true
}

func (s ReactionSet) indexOf(match func(UserReaction) bool) int {
	for i, r := range s.Mine {
		if match(r) {
			return i
		}
	}
	return -1
}

// Validate checks that counts are positive and that every reaction in Mine
// is reflected in Totals.
func (s ReactionSet) Validate() error {
	for kind, n := range s.Totals {
		if n <= 0 {
			return fmt.Errorf("kind %q has non-positive count %d", kind, n)
		}
	}
	mine := make(map[string]int)
	for _, r := range s.Mine {
		mine[r.Kind]++
	}
	for kind, n := range mine {
		if s.Totals[kind] < n {
			return fmt.Errorf("kind %q: %d own reactions but total %d", kind, n, s.Totals[kind])
		}
	}
	return nil
}

func IsAllowedKind(kind string) bool {
	for _, k := range AllowedKinds {
		if k == kind {
			return true
		}
	}
	return false
}
