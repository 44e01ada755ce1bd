package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/feedsync/internal/logging"
	"github.com/HammerMeetNail/feedsync/internal/models"
)

const (
	summaryCachePrefix = "reaction_summary:"
	summaryCacheTTL    = 5 * time.Minute
)

type ReactionService struct {
	db    DB
	cache RedisClient
}

// NewReactionService builds the service. cache may be nil, in which case
// summaries always come from the database.
func NewReactionService(db DB, cache RedisClient) *ReactionService {
	return &ReactionService{db: db, cache: cache}
}

// AddReaction records one reaction of kind by userID on itemID. A user may
// hold several reactions on the same item, one per kind.
func (s *ReactionService) AddReaction(ctx context.Context, userID, itemID uuid.UUID, kind string) (*models.Reaction, error) {
	if !models.IsAllowedKind(kind) {
		return nil, ErrInvalidKind
	}

	reaction := &models.Reaction{}
	err := withTx(ctx, s.db, func(tx Tx) error {
		if err := lockActivityForShare(ctx, tx, itemID); err != nil {
			return err
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO reactions (item_id, user_id, kind)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (item_id, user_id, kind) DO NOTHING
			 RETURNING id, item_id, user_id, kind, created_at`,
			itemID, userID, kind,
		).Scan(&reaction.ID, &reaction.ItemID, &reaction.UserID, &reaction.Kind, &reaction.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicateReaction
		}
		if err != nil {
			return fmt.Errorf("adding reaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSummary(ctx, itemID)
	return reaction, nil
}

// RemoveReaction deletes reactionID if it belongs to userID.
func (s *ReactionService) RemoveReaction(ctx context.Context, userID, reactionID uuid.UUID) error {
	var itemID uuid.UUID
	err := s.db.QueryRow(ctx,
		`DELETE FROM reactions WHERE id = $1 AND user_id = $2 RETURNING item_id`,
		reactionID, userID,
	).Scan(&itemID)
	if err == nil {
		s.invalidateSummary(ctx, itemID)
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("removing reaction: %w", err)
	}

	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM reactions WHERE id = $1)`,
		reactionID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking reaction: %w", err)
	}
	if exists {
		return ErrNotOwner
	}
	return ErrReactionNotFound
}

// GetReactionSummaryForItem returns per-kind counts for itemID, most popular
// first.
func (s *ReactionService) GetReactionSummaryForItem(ctx context.Context, itemID uuid.UUID) ([]models.ReactionSummary, error) {
	if cached, ok := s.cachedSummary(ctx, itemID); ok {
		return cached, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT kind, COUNT(*) AS count
		 FROM reactions
		 WHERE item_id = $1
		 GROUP BY kind
		 ORDER BY count DESC, kind`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting reaction summary: %w", err)
	}
	defer rows.Close()

	summaries := []models.ReactionSummary{}
	for rows.Next() {
		var summary models.ReactionSummary
		if err := rows.Scan(&summary.Kind, &summary.Count); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summary: %w", err)
	}

	s.storeSummary(ctx, itemID, summaries)
	return summaries, nil
}

func summaryKey(itemID uuid.UUID) string {
	return summaryCachePrefix + itemID.String()
}

func (s *ReactionService) cachedSummary(ctx context.Context, itemID uuid.UUID) ([]models.ReactionSummary, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, summaryKey(itemID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.Warn("Reaction summary cache read failed", map[string]interface{}{
				"item_id": itemID.String(),
				"error":   err.Error(),
			})
		}
		return nil, false
	}
	var summaries []models.ReactionSummary
	if err := json.Unmarshal([]byte(raw), &summaries); err != nil {
		return nil, false
	}
	return summaries, true
}

func (s *ReactionService) storeSummary(ctx context.Context, itemID uuid.UUID, summaries []models.ReactionSummary) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(summaries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, summaryKey(itemID), string(payload), summaryCacheTTL); err != nil {
		logging.Warn("Reaction summary cache write failed", map[string]interface{}{
			"item_id": itemID.String(),
			"error":   err.Error(),
		})
	}
}

func (s *ReactionService) invalidateSummary(ctx context.Context, itemID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, summaryKey(itemID)); err != nil {
		logging.Warn("Reaction summary cache invalidation failed", map[string]interface{}{
			"item_id": itemID.String(),
			"error":   err.Error(),
		})
	}
}
