package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/casebook/internal/auth"
	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/service"
)

// FavoriteHandler serves image bookmarks.
type FavoriteHandler struct {
	favorites *service.FavoriteService
	logger    zerolog.Logger
}

// NewFavoriteHandler creates a new FavoriteHandler.
func NewFavoriteHandler(favorites *service.FavoriteService, logger zerolog.Logger) *FavoriteHandler {
	return &FavoriteHandler{
		favorites: favorites,
		logger:    logger.With().Str("handler", "favorite").Logger(),
	}
}

type addFavoriteRequest struct {
	ImageID int64 `json:"image_id"`
}

// Add handles POST /api/favorites.
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req addFavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("body", "malformed JSON body"))
		return
	}
	if req.ImageID < 1 {
		writeError(w, domain.NewValidationError("image_id", "must be a positive integer"))
		return
	}

	fav, err := h.favorites.Add(r.Context(), userID, req.ImageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

// Remove handles DELETE /api/favorites/{imageID}.
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	imageID, err := pathID(r, "imageID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.favorites.Remove(r.Context(), userID, imageID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/favorites.
func (h *FavoriteHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	images, err := h.favorites.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}
