package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kozaktomas/face-swap/internal/database"
	dbmock "github.com/kozaktomas/face-swap/internal/database/mock"
	"github.com/rs/zerolog"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := range 3 {
		for x := range 4 {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSwapImageToImage_EncodedResponse(t *testing.T) {
	pngData := testPNG(t)
	var gotEnhance string
	var gotFiles []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/swap/image" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotEnhance = r.FormValue("enhance_face_model")
		for field := range r.MultipartForm.File {
			gotFiles = append(gotFiles, field)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	}))
	defer server.Close()

	src := writeTemp(t, "source.png", pngData)
	tgt := writeTemp(t, "target.png", pngData)

	c := NewHTTPClient(server.URL, nil, zerolog.Nop())
	img, err := c.SwapImageToImage(context.Background(), src, tgt, "gpen_bfr_2048")
	if err != nil {
		t.Fatalf("SwapImageToImage failed: %v", err)
	}
	if img.Width != 4 || img.Height != 3 {
		t.Errorf("expected 4x3, got %dx%d", img.Width, img.Height)
	}
	if img.Pix[0] != 200 || img.Pix[1] != 100 || img.Pix[2] != 50 {
		t.Errorf("unexpected first pixel %v", img.Pix[:3])
	}
	if gotEnhance != "gpen_bfr_2048" {
		t.Errorf("expected enhance model to be sent, got %q", gotEnhance)
	}
	if len(gotFiles) != 2 {
		t.Errorf("expected source and target files, got %v", gotFiles)
	}
}

func TestSwapImageToImage_RawResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		if _, ok := r.MultipartForm.Value["enhance_face_model"]; ok {
			t.Error("enhance_face_model must be omitted when enhancement is off")
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("X-Image-Width", "2")
		w.Header().Set("X-Image-Height", "1")
		w.Write([]byte{1, 2, 3, 4, 5, 6})
	}))
	defer server.Close()

	src := writeTemp(t, "a.png", testPNG(t))
	c := NewHTTPClient(server.URL, nil, zerolog.Nop())
	img, err := c.SwapImageToImage(context.Background(), src, src, "")
	if err != nil {
		t.Fatalf("SwapImageToImage failed: %v", err)
	}
	if !bytes.Equal(img.Pix, []byte{1, 2, 3, 4, 5, 6}) {
		t.Errorf("unexpected pixels %v", img.Pix)
	}
}

func TestSwapImageToImage_ErrorCodes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"no face", http.StatusUnprocessableEntity, `{"error_code":"no_face","detail":"no face in source"}`, ErrNoFace},
		{"undecodable", http.StatusUnprocessableEntity, `{"error_code":"undecodable","detail":"bad"}`, ErrUndecodable},
		{"plain text", http.StatusInternalServerError, "boom", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			src := writeTemp(t, "a.png", testPNG(t))
			c := NewHTTPClient(server.URL, nil, zerolog.Nop())
			_, err := c.SwapImageToImage(context.Background(), src, src, "")
			if err == nil {
				t.Fatal("expected error")
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %T", err)
			}
			if apiErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.Status)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRegisterFace_PersistsEmbedding(t *testing.T) {
	var gotLabel, gotSave string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		gotLabel = r.FormValue("label")
		gotSave = r.FormValue("save")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(faceResponse{Label: gotLabel, Embedding: []float32{0.1, 0.2, 0.3}, Model: "arcface"})
	}))
	defer server.Close()

	store := dbmock.NewMockFaceStore()
	c := NewHTTPClient(server.URL, store, zerolog.Nop())
	img, _ := NewRawImage(1, 1, []byte{1, 2, 3})

	if err := c.RegisterFace(context.Background(), "alice", img, true); err != nil {
		t.Fatalf("RegisterFace failed: %v", err)
	}
	if gotLabel != "alice" || gotSave != "true" {
		t.Errorf("unexpected form values label=%q save=%q", gotLabel, gotSave)
	}

	saved, _ := store.GetFace(context.Background(), "alice")
	if saved == nil {
		t.Fatal("expected face to be persisted")
	}
	if saved.Dim != 3 || saved.Model != "arcface" {
		t.Errorf("unexpected stored face %+v", saved)
	}
}

func TestRegisterFace_NoPersist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(faceResponse{Embedding: []float32{1}})
	}))
	defer server.Close()

	store := dbmock.NewMockFaceStore()
	c := NewHTTPClient(server.URL, store, zerolog.Nop())
	img, _ := NewRawImage(1, 1, []byte{1, 2, 3})

	if err := c.RegisterFace(context.Background(), "bob", img, false); err != nil {
		t.Fatalf("RegisterFace failed: %v", err)
	}
	if f, _ := store.GetFace(context.Background(), "bob"); f != nil {
		t.Error("face must not be stored without persist")
	}
}

func TestSwapVideo_StreamsOutputNextToInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		if r.FormValue("faces") != "alice" {
			t.Errorf("unexpected faces field %q", r.FormValue("faces"))
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("swapped-bytes"))
	}))
	defer server.Close()

	in := writeTemp(t, "clip.mov", []byte("original"))
	c := NewHTTPClient(server.URL, nil, zerolog.Nop())

	out, err := c.SwapVideo(context.Background(), "alice", VideoRef{Name: "clip.mov", Path: in}, "")
	if err != nil {
		t.Fatalf("SwapVideo failed: %v", err)
	}
	if filepath.Dir(out.Path) != filepath.Dir(in) {
		t.Errorf("expected output in %s, got %s", filepath.Dir(in), out.Path)
	}
	if out.Name != "clip.mov" {
		t.Errorf("expected name to be kept, got %q", out.Name)
	}
	data, _ := os.ReadFile(out.Path)
	if string(data) != "swapped-bytes" {
		t.Errorf("unexpected output %q", data)
	}
}

func TestSwapVideo_RestoresUnknownFace(t *testing.T) {
	var mu sync.Mutex
	registered := false
	var restoredBody restoreRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/swap/video", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		mu.Lock()
		defer mu.Unlock()
		if !registered {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error_code":"unknown_face","detail":"alice"}`))
			return
		}
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/faces/alice", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		json.NewDecoder(r.Body).Decode(&restoredBody)
		mu.Lock()
		registered = true
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	store := dbmock.NewMockFaceStore()
	store.SaveFace(context.Background(), database.StoredFace{Label: "alice", Embedding: []float32{0.5, 0.25}, Model: "arcface"})

	in := writeTemp(t, "v.mp4", []byte("x"))
	c := NewHTTPClient(server.URL, store, zerolog.Nop())

	if _, err := c.SwapVideo(context.Background(), "alice", VideoRef{Name: "v.mp4", Path: in}, ""); err != nil {
		t.Fatalf("SwapVideo failed: %v", err)
	}
	if len(restoredBody.Embedding) != 2 || restoredBody.Model != "arcface" {
		t.Errorf("unexpected restore body %+v", restoredBody)
	}
}

func TestSwapVideo_UnknownFaceWithoutBackup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	in := writeTemp(t, "v.mp4", []byte("x"))
	c := NewHTTPClient(server.URL, dbmock.NewMockFaceStore(), zerolog.Nop())

	_, err := c.SwapVideo(context.Background(), "ghost", VideoRef{Name: "v.mp4", Path: in}, "")
	if !errors.Is(err, ErrUnknownFace) {
		t.Fatalf("expected ErrUnknownFace, got %v", err)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	if err := NewHTTPClient(server.URL+"/", nil, zerolog.Nop()).Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewHTTPClient_DefaultURL(t *testing.T) {
	c := NewHTTPClient("", nil, zerolog.Nop())
	if !strings.HasPrefix(c.baseURL, "http://localhost") {
		t.Errorf("unexpected default url %q", c.baseURL)
	}
}
