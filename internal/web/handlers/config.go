package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-swap/internal/config"
	"github.com/kozaktomas/face-swap/internal/constants"
	"github.com/kozaktomas/face-swap/internal/swap"
)

// Form fields whose visibility depends on the selected mode.
const (
	FieldTargetImage  = "target_image"
	FieldTargetVideos = "target_videos"
)

// FieldVisibility maps a mode to the target inputs the UI shows for it.
func FieldVisibility(mode swap.Mode) map[string]bool {
	return map[string]bool{
		FieldTargetImage:  mode == swap.ModeImage,
		FieldTargetVideos: mode == swap.ModeMultiVideo,
	}
}

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Modes           []ModeInfo `json:"modes"`
	DefaultMode     string     `json:"default_mode"`
	EnhanceModel    string     `json:"enhance_model"`
	MaxVideoTargets int        `json:"max_video_targets"`
	MaxUploadBytes  int64      `json:"max_upload_bytes"`
}

// ModeInfo describes one swap mode for the UI
type ModeInfo struct {
	Name    string          `json:"name"`
	Label   string          `json:"label"`
	Fields  map[string]bool `json:"fields"`
	Accepts string          `json:"accepts"`
}

// Get returns the available configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	modes := make([]ModeInfo, 0, len(swap.Modes()))
	for _, m := range swap.Modes() {
		accepts := "image/*"
		if m == swap.ModeMultiVideo {
			accepts = "video/mp4,.mp4"
		}
		modes = append(modes, ModeInfo{
			Name:    m.String(),
			Label:   m.Label(),
			Fields:  FieldVisibility(m),
			Accepts: accepts,
		})
	}

	response := ConfigResponse{
		Modes:           modes,
		DefaultMode:     swap.ModeImage.String(),
		EnhanceModel:    h.config.EnhanceModelFor(true),
		MaxVideoTargets: constants.MaxVideoTargets,
		MaxUploadBytes:  constants.MaxRequestBody,
	}

	respondJSON(w, http.StatusOK, response)
}
