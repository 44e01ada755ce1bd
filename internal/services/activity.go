package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/feedsync/internal/models"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
	maxPlaceNameLen  = 200
)

type ActivityService struct {
	db DBConn
}

func NewActivityService(db DBConn) *ActivityService {
	return &ActivityService{db: db}
}

// List returns one page of the feed, newest first, with each activity's
// reaction totals and the viewer's own reactions attached.
func (s *ActivityService) List(ctx context.Context, viewerID uuid.UUID, page, limit int) (*models.ListResponse[models.Activity], error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}
	limit = clampLimit(limit)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM activities`).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting activities: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT a.id, a.user_id, u.username, a.place_name, a.caption, a.created_at
		 FROM activities a
		 JOIN users u ON u.id = a.user_id
		 ORDER BY a.created_at DESC, a.id DESC
		 LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}

	activities := []models.Activity{}
	ids := []uuid.UUID{}
	for rows.Next() {
		var (
			id, userID uuid.UUID
			a          models.Activity
		)
		if err := rows.Scan(&id, &userID, &a.Username, &a.PlaceName, &a.Caption, &a.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		a.ID = id.String()
		a.UserID = userID.String()
		a.Reactions = models.ReactionSet{Totals: map[string]int{}, Mine: []models.UserReaction{}}
		activities = append(activities, a)
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating activities: %w", err)
	}

	if len(ids) > 0 {
		if err := s.attachReactions(ctx, viewerID, ids, activities); err != nil {
			return nil, err
		}
	}

	return &models.ListResponse[models.Activity]{
		Data:       activities,
		Pagination: models.Pagination{Page: page, TotalCount: total},
	}, nil
}

func (s *ActivityService) attachReactions(ctx context.Context, viewerID uuid.UUID, ids []uuid.UUID, activities []models.Activity) error {
	byID := make(map[string]*models.Activity, len(activities))
	for i := range activities {
		byID[activities[i].ID] = &activities[i]
	}

	rows, err := s.db.Query(ctx,
		`SELECT item_id, kind, COUNT(*)
		 FROM reactions
		 WHERE item_id = ANY($1)
		 GROUP BY item_id, kind`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("counting reactions: %w", err)
	}
	for rows.Next() {
		var (
			itemID uuid.UUID
			kind   string
			count  int
		)
		if err := rows.Scan(&itemID, &kind, &count); err != nil {
			rows.Close()
			return fmt.Errorf("scanning reaction count: %w", err)
		}
		if a, ok := byID[itemID.String()]; ok {
			a.Reactions.Totals[kind] = count
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("iterating reaction counts: %w", err)
	}

	if viewerID == uuid.Nil {
		return nil
	}

	rows, err = s.db.Query(ctx,
		`SELECT id, item_id, kind, created_at
		 FROM reactions
		 WHERE user_id = $1 AND item_id = ANY($2)
		 ORDER BY created_at, id`,
		viewerID, ids,
	)
	if err != nil {
		return fmt.Errorf("listing viewer reactions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id, itemID uuid.UUID
			kind       string
			createdAt  time.Time
		)
		if err := rows.Scan(&id, &itemID, &kind, &createdAt); err != nil {
			return fmt.Errorf("scanning viewer reaction: %w", err)
		}
		if a, ok := byID[itemID.String()]; ok {
			a.Reactions.Mine = append(a.Reactions.Mine, models.UserReaction{
				ID:        id.String(),
				UserID:    viewerID.String(),
				Kind:      kind,
				CreatedAt: createdAt,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating viewer reactions: %w", err)
	}
	return nil
}

// Create posts a new check-in for userID.
func (s *ActivityService) Create(ctx context.Context, userID uuid.UUID, placeName, caption string) (*models.Activity, error) {
	placeName = strings.TrimSpace(placeName)
	if placeName == "" || utf8.RuneCountInString(placeName) > maxPlaceNameLen {
		return nil, ErrInvalidActivity
	}

	var (
		id        uuid.UUID
		username  string
		createdAt time.Time
	)
	err := s.db.QueryRow(ctx,
		`WITH inserted AS (
			INSERT INTO activities (user_id, place_name, caption)
			VALUES ($1, $2, $3)
			RETURNING id, user_id, created_at
		 )
		 SELECT i.id, u.username, i.created_at
		 FROM inserted i
		 JOIN users u ON u.id = i.user_id`,
		userID, placeName, strings.TrimSpace(caption),
	).Scan(&id, &username, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("creating activity: %w", err)
	}

	return &models.Activity{
		ID:        id.String(),
		UserID:    userID.String(),
		Username:  username,
		PlaceName: placeName,
		Caption:   strings.TrimSpace(caption),
		CreatedAt: createdAt,
		Reactions: models.ReactionSet{Totals: map[string]int{}, Mine: []models.UserReaction{}},
	}, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
