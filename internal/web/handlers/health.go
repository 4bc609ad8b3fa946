package handlers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/face-swap/internal/config"
	"github.com/shirou/gopsutil/v3/disk"
)

// Pinger reports whether the swap engine is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports engine reachability and output disk usage.
type HealthHandler struct {
	config *config.Config
	engine Pinger
}

// NewHealthHandler creates a new health handler. engine may be nil.
func NewHealthHandler(cfg *config.Config, engine Pinger) *HealthHandler {
	return &HealthHandler{config: cfg, engine: engine}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string       `json:"status"` // "ok" or "degraded"
	Engine EngineHealth `json:"engine"`
	Disk   *DiskHealth  `json:"disk,omitempty"`
}

// EngineHealth describes the swap engine connection.
type EngineHealth struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// DiskHealth describes the filesystem holding the output directory.
type DiskHealth struct {
	Path        string  `json:"path"`
	FreeBytes   uint64  `json:"free_bytes"`
	TotalBytes  uint64  `json:"total_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// existingDir returns dir or its nearest existing parent.
func existingDir(dir string) string {
	for {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// Check handles the health check endpoint.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status: "ok",
		Engine: EngineHealth{URL: h.config.Engine.URL},
	}

	if h.engine != nil {
		if err := h.engine.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Engine.Error = err.Error()
		} else {
			resp.Engine.Reachable = true
		}
	} else {
		resp.Status = "degraded"
		resp.Engine.Error = "engine not configured"
	}

	outDir, err := filepath.Abs(h.config.Swap.OutputDir)
	if err == nil {
		path := existingDir(outDir)
		if usage, err := disk.UsageWithContext(ctx, path); err == nil {
			resp.Disk = &DiskHealth{
				Path:        path,
				FreeBytes:   usage.Free,
				TotalBytes:  usage.Total,
				UsedPercent: usage.UsedPercent,
			}
			if floor := h.config.Swap.MinFreeBytes(); floor > 0 && usage.Free < floor {
				resp.Status = "degraded"
			}
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
