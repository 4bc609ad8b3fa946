package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-swap/internal/config"
	"github.com/kozaktomas/face-swap/internal/swap"
)

type stubRunner struct{}

func (stubRunner) Run(ctx context.Context, req *swap.Request) *swap.Result {
	return &swap.Result{Status: swap.StatusSuccess}
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Swap.OutputDir = t.TempDir()
	cfg.Swap.StagingDir = t.TempDir()
	return NewServer(cfg, stubRunner{}, stubPinger{}, nil)
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{"GET", "/api/v1/health", http.StatusOK},
		{"GET", "/api/v1/config", http.StatusOK},
		{"GET", "/api/v1/swap", http.StatusOK},
		{"GET", "/api/v1/swap/unknown", http.StatusNotFound},
		{"DELETE", "/api/v1/swap/unknown", http.StatusNotFound},
		{"GET", "/api/v1/swap/unknown/events", http.StatusNotFound},
		{"GET", "/api/v1/outputs/missing.jpg", http.StatusNotFound},
		{"GET", "/api/v1/faces", http.StatusOK},
		{"DELETE", "/api/v1/faces/someone", http.StatusNotFound},
		{"GET", "/", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))
			if recorder.Code != tc.wantStatus {
				t.Errorf("expected %d, got %d: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServer_ServesUI(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/", "/jobs/123"} {
		recorder := httptest.NewRecorder()
		s.Router().ServeHTTP(recorder, httptest.NewRequest("GET", path, nil))

		if ct := recorder.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
			t.Errorf("%s: expected html, got %q", path, ct)
		}
		if !strings.Contains(recorder.Body.String(), "<title>Face Swap</title>") {
			t.Errorf("%s: expected UI page", path)
		}
	}
}

func TestServer_SecurityHeaders(t *testing.T) {
	s := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest("GET", "/api/v1/config", nil))

	if recorder.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected nosniff header")
	}
}
