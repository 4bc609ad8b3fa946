package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-swap/internal/database"
	"github.com/rs/zerolog/log"
)

// FacesHandler exposes the persisted source faces.
type FacesHandler struct {
	store database.FaceStore
}

// NewFacesHandler creates a new faces handler. store may be nil when face
// persistence is disabled.
func NewFacesHandler(store database.FaceStore) *FacesHandler {
	return &FacesHandler{store: store}
}

// FaceResponse is a stored face without its embedding.
type FaceResponse struct {
	Label     string    `json:"label"`
	Model     string    `json:"model"`
	Dim       int       `json:"dim"`
	CreatedAt time.Time `json:"created_at"`
}

// List returns all stored faces.
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		respondJSON(w, http.StatusOK, []FaceResponse{})
		return
	}

	faces, err := h.store.ListFaces(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list faces")
		respondError(w, http.StatusInternalServerError, "failed to list faces")
		return
	}

	resp := make([]FaceResponse, len(faces))
	for i, f := range faces {
		resp[i] = FaceResponse{Label: f.Label, Model: f.Model, Dim: f.Dim, CreatedAt: f.CreatedAt}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Delete removes a stored face by label.
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if label == "" {
		respondError(w, http.StatusBadRequest, "missing label")
		return
	}
	if h.store == nil {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}

	deleted, err := h.store.DeleteFace(r.Context(), label)
	if err != nil {
		log.Error().Err(err).Str("label", sanitizeForLog(label)).Msg("failed to delete face")
		respondError(w, http.StatusInternalServerError, "failed to delete face")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "face not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
