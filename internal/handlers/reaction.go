package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/feedsync/internal/logging"
	"github.com/HammerMeetNail/feedsync/internal/models"
	"github.com/HammerMeetNail/feedsync/internal/services"
)

type ReactionHandler struct {
	reactionService services.ReactionServiceInterface
}

func NewReactionHandler(reactionService services.ReactionServiceInterface) *ReactionHandler {
	return &ReactionHandler{reactionService: reactionService}
}

type ReactionSummaryResponse struct {
	Summary []models.ReactionSummary `json:"summary"`
}

type AllowedKindsResponse struct {
	Kinds []string `json:"kinds"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// AddReaction serves POST /api/reactions and answers with the stored
// reaction, whose reactionId the client uses to confirm its pending entry.
func (h *ReactionHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req models.AddReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	reaction, err := h.reactionService.AddReaction(r.Context(), user.ID, itemID, req.Kind)
	switch {
	case errors.Is(err, services.ErrInvalidKind):
		writeError(w, http.StatusBadRequest, "Invalid reaction kind")
		return
	case errors.Is(err, services.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Item not found")
		return
	case errors.Is(err, services.ErrDuplicateReaction):
		writeError(w, http.StatusConflict, "Reaction already exists")
		return
	case err != nil:
		logging.Error("Error adding reaction", map[string]interface{}{
			"error":   err.Error(),
			"item_id": itemID.String(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, reaction)
}

// RemoveReaction serves DELETE /api/reactions/{id}.
func (h *ReactionHandler) RemoveReaction(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	reactionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reaction ID")
		return
	}

	err = h.reactionService.RemoveReaction(r.Context(), user.ID, reactionID)
	switch {
	case errors.Is(err, services.ErrReactionNotFound):
		writeError(w, http.StatusNotFound, "Reaction not found")
		return
	case errors.Is(err, services.ErrNotOwner):
		writeError(w, http.StatusForbidden, "Cannot remove another user's reaction")
		return
	case err != nil:
		logging.Error("Error removing reaction", map[string]interface{}{
			"error":       err.Error(),
			"reaction_id": reactionID.String(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Reaction removed"})
}

// GetSummary serves GET /api/items/{id}/reactions.
func (h *ReactionHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	summary, err := h.reactionService.GetReactionSummaryForItem(r.Context(), itemID)
	if err != nil {
		logging.Error("Error getting reaction summary", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ReactionSummaryResponse{Summary: summary})
}

func (h *ReactionHandler) GetAllowedKinds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, AllowedKindsResponse{Kinds: models.AllowedKinds})
}
