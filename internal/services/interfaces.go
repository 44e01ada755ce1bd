package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/feedsync/internal/models"
)

type ActivityServiceInterface interface {
	List(ctx context.Context, viewerID uuid.UUID, page, limit int) (*models.ListResponse[models.Activity], error)
	Create(ctx context.Context, userID uuid.UUID, placeName, caption string) (*models.Activity, error)
}

type ReactionServiceInterface interface {
	AddReaction(ctx context.Context, userID, itemID uuid.UUID, kind string) (*models.Reaction, error)
	RemoveReaction(ctx context.Context, userID, reactionID uuid.UUID) error
	GetReactionSummaryForItem(ctx context.Context, itemID uuid.UUID) ([]models.ReactionSummary, error)
}

type UserServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ResolveSubject(ctx context.Context, subject, username string) (*models.User, error)
	EnsureDevUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

var (
	_ ActivityServiceInterface = (*ActivityService)(nil)
	_ ReactionServiceInterface = (*ReactionService)(nil)
	_ UserServiceInterface     = (*UserService)(nil)
	_ TokenVerifier            = (*OIDCVerifier)(nil)
)
