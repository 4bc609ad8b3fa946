package web

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-swap/internal/web/handlers"
	"github.com/kozaktomas/face-swap/internal/web/static"
)

func (s *Server) setupRoutes() {
	swapHandler := handlers.NewSwapHandler(s.config, s.runner, s.jobManager)
	configHandler := handlers.NewConfigHandler(s.config)
	healthHandler := handlers.NewHealthHandler(s.config, s.engine)
	facesHandler := handlers.NewFacesHandler(s.faces)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)
		r.Get("/config", configHandler.Get)

		// Swap jobs
		r.Post("/swap", swapHandler.Start)
		r.Get("/swap", swapHandler.List)
		r.Get("/swap/{jobId}", swapHandler.Status)
		r.Get("/swap/{jobId}/events", swapHandler.Events)
		r.Delete("/swap/{jobId}", swapHandler.Cancel)

		// Produced artifacts
		r.Get("/outputs/{name}", swapHandler.Download)

		// Persisted source faces
		r.Get("/faces", facesHandler.List)
		r.Delete("/faces/{label}", facesHandler.Delete)
	})

	// Serve static files for frontend (SPA)
	s.router.Get("/*", s.serveSPA)
}

// serveSPA serves the single-page application
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	if static.HasDist() {
		fs := static.GetFileSystem()
		p := r.URL.Path
		if p == "/" {
			p = "/index.html"
		}

		if f, err := fs.Open(p); err == nil {
			defer f.Close()
			if stat, err := f.Stat(); err == nil && !stat.IsDir() {
				contentType := mime.TypeByExtension(path.Ext(p))
				if contentType == "" {
					contentType = "application/octet-stream"
				}
				w.Header().Set("Content-Type", contentType)
				if strings.HasPrefix(p, "/assets/") {
					w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
				}
				w.WriteHeader(http.StatusOK)
				io.Copy(w, f)
				return
			}
		}

		// For SPA routing, serve index.html for non-asset paths
		if !strings.HasPrefix(p, "/assets/") {
			if indexFile, err := fs.Open("/index.html"); err == nil {
				defer indexFile.Close()
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusOK)
				io.Copy(w, indexFile)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Face Swap</title></head>
<body>
    <h1>Face Swap</h1>
    <p>The web UI is not bundled in this build. The API is available at <a href="/api/v1/health">/api/v1/health</a>.</p>
</body>
</html>`))
}
