package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/casebook/internal/auth"
	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/service"
)

// TaxonomyHandler serves the per-user clinical hierarchy.
type TaxonomyHandler struct {
	taxonomy *service.TaxonomyService
	logger   zerolog.Logger
}

// NewTaxonomyHandler creates a new TaxonomyHandler.
func NewTaxonomyHandler(taxonomy *service.TaxonomyService, logger zerolog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{
		taxonomy: taxonomy,
		logger:   logger.With().Str("handler", "taxonomy").Logger(),
	}
}

// pathLevel reads the {level} URL parameter. The service validates it.
func pathLevel(r *http.Request) domain.TaxonomyLevel {
	return domain.TaxonomyLevel(chi.URLParam(r, "level"))
}

type createNodeRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}

// Create handles POST /api/taxonomy/{level}.
func (h *TaxonomyHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req createNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("body", "malformed JSON body"))
		return
	}

	node, err := h.taxonomy.Create(r.Context(), service.CreateNodeInput{
		OwnerUserID: userID,
		Level:       pathLevel(r),
		ParentID:    req.ParentID,
		Name:        req.Name,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, node)
}

// List handles GET /api/taxonomy/{level}.
func (h *TaxonomyHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	nodes, err := h.taxonomy.List(r.Context(), pathLevel(r), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": nodes})
}

type renameNodeRequest struct {
	Name string `json:"name"`
}

// Rename handles PATCH /api/taxonomy/{level}/{nodeID}.
func (h *TaxonomyHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		writeError(w, err)
		return
	}

	var req renameNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.NewValidationError("body", "malformed JSON body"))
		return
	}

	if err := h.taxonomy.Rename(r.Context(), pathLevel(r), userID, nodeID, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// Delete handles DELETE /api/taxonomy/{level}/{nodeID}.
func (h *TaxonomyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	nodeID, err := pathID(r, "nodeID")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.taxonomy.Delete(r.Context(), pathLevel(r), userID, nodeID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Tree handles GET /api/taxonomy.
func (h *TaxonomyHandler) Tree(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	tree, err := h.taxonomy.Tree(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}
