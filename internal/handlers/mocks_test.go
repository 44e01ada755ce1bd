package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/feedsync/internal/models"
)

type mockActivityService struct {
	ListFunc   func(ctx context.Context, viewerID uuid.UUID, page, limit int) (*models.ListResponse[models.Activity], error)
	CreateFunc func(ctx context.Context, userID uuid.UUID, placeName, caption string) (*models.Activity, error)
}

func (m *mockActivityService) List(ctx context.Context, viewerID uuid.UUID, page, limit int) (*models.ListResponse[models.Activity], error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, viewerID, page, limit)
	}
	return nil, errors.New("ListFunc not set")
}

func (m *mockActivityService) Create(ctx context.Context, userID uuid.UUID, placeName, caption string) (*models.Activity, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, placeName, caption)
	}
	return nil, errors.New("CreateFunc not set")
}

type mockReactionService struct {
	AddReactionFunc    func(ctx context.Context, userID, itemID uuid.UUID, kind string) (*models.Reaction, error)
	RemoveReactionFunc func(ctx context.Context, userID, reactionID uuid.UUID) error
	SummaryFunc        func(ctx context.Context, itemID uuid.UUID) ([]models.ReactionSummary, error)
}

func (m *mockReactionService) AddReaction(ctx context.Context, userID, itemID uuid.UUID, kind string) (*models.Reaction, error) {
	if m.AddReactionFunc != nil {
		return m.AddReactionFunc(ctx, userID, itemID, kind)
	}
	return nil, errors.New("AddReactionFunc not set")
}

func (m *mockReactionService) RemoveReaction(ctx context.Context, userID, reactionID uuid.UUID) error {
	if m.RemoveReactionFunc != nil {
		return m.RemoveReactionFunc(ctx, userID, reactionID)
	}
	return errors.New("RemoveReactionFunc not set")
}

func (m *mockReactionService) GetReactionSummaryForItem(ctx context.Context, itemID uuid.UUID) ([]models.ReactionSummary, error) {
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx, itemID)
	}
	return nil, errors.New("SummaryFunc not set")
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(SetUserInContext(req.Context(), &models.User{ID: userID}))
}

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (body %s)", status, rr.Code, rr.Body.String())
	}
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error != message {
		t.Fatalf("expected error %q, got %q", message, resp.Error)
	}
}
