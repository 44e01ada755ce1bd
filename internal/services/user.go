package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/feedsync/internal/models"
)

// DevSubjectPrefix marks subjects of users created through the development
// user header.
const DevSubjectPrefix = "dev:"

type UserService struct {
	db DBConn
}

func NewUserService(db DBConn) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`SELECT id, subject, username, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Subject, &user.Username, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// ResolveSubject returns the user for an identity-provider subject, creating
// it on first sight. A non-empty username refreshes the stored one; new users
// without one are named after their subject.
func (s *UserService) ResolveSubject(ctx context.Context, subject, username string) (*models.User, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, errors.New("subject is required")
	}
	username = strings.TrimSpace(username)

	user := &models.User{}
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (subject, username)
		 VALUES ($1, COALESCE(NULLIF($2::text, ''), $1))
		 ON CONFLICT (subject) DO UPDATE
		 SET username = COALESCE(NULLIF($2::text, ''), users.username)
		 RETURNING id, subject, username, created_at`,
		subject, username,
	).Scan(&user.ID, &user.Subject, &user.Username, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("resolving user: %w", err)
	}
	return user, nil
}

// EnsureDevUser creates the development user with the given id if it does not
// exist yet and returns it.
func (s *UserService) EnsureDevUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, ErrUserNotFound
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (id, subject, username)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		id, DevSubjectPrefix+id.String(), "dev-"+id.String()[:8],
	)
	if err != nil {
		return nil, fmt.Errorf("creating dev user: %w", err)
	}
	return s.GetByID(ctx, id)
}
