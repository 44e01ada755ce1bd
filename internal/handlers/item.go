package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/HammerMeetNail/feedsync/internal/logging"
	"github.com/HammerMeetNail/feedsync/internal/services"
)

type ItemHandler struct {
	activityService services.ActivityServiceInterface
}

func NewItemHandler(activityService services.ActivityServiceInterface) *ItemHandler {
	return &ItemHandler{activityService: activityService}
}

type CreateItemRequest struct {
	PlaceName string `json:"placeName"`
	Caption   string `json:"caption"`
}

// List serves GET /api/items?page=&limit=.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	page, ok := queryInt(r, "page", 1)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid page")
		return
	}
	limit, ok := queryInt(r, "limit", services.DefaultListLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	resp, err := h.activityService.List(r.Context(), user.ID, page, limit)
	if errors.Is(err, services.ErrInvalidPage) {
		writeError(w, http.StatusBadRequest, "Invalid page")
		return
	}
	if err != nil {
		logging.Error("Error listing items", map[string]interface{}{"error": err.Error(), "page": page})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	activity, err := h.activityService.Create(r.Context(), user.ID, req.PlaceName, req.Caption)
	if errors.Is(err, services.ErrInvalidActivity) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		logging.Error("Error creating item", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, activity)
}

func queryInt(r *http.Request, key string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
