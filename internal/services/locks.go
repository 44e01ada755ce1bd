package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// lockActivityForShare holds a share lock on the activity row so it cannot be
// deleted while a reaction to it is being inserted.
func lockActivityForShare(ctx context.Context, q DBConn, itemID uuid.UUID) error {
	var lockedID uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM activities WHERE id = $1 FOR SHARE`, itemID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrItemNotFound
	}
	if err != nil {
		return fmt.Errorf("lock activity: %w", err)
	}
	return nil
}
