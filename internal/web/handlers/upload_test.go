package handlers

import (
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// formFileHeaders parses a multipart request and returns the file headers for field.
func formFileHeaders(t *testing.T, field string, files []formFile) []*multipart.FileHeader {
	t.Helper()
	req := multipartRequest(t, "/upload", nil, files)
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("failed to parse form: %v", err)
	}
	t.Cleanup(func() { req.MultipartForm.RemoveAll() })
	return req.MultipartForm.File[field]
}

func TestSpoolUploads_KeepsDuplicateNames(t *testing.T) {
	headers := formFileHeaders(t, "targets", []formFile{
		{"targets", "clip.mp4", []byte("first")},
		{"targets", "clip.mp4", []byte("second")},
	})
	dir := t.TempDir()

	spooled, err := spoolUploads(headers, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(spooled) != 2 {
		t.Fatalf("expected 2 spooled files, got %d", len(spooled))
	}

	for i, want := range []string{"first", "second"} {
		if spooled[i].Name != "clip.mp4" {
			t.Errorf("file %d: expected name clip.mp4, got %s", i, spooled[i].Name)
		}
		data, err := os.ReadFile(spooled[i].Path)
		if err != nil {
			t.Fatalf("failed to read spooled file: %v", err)
		}
		if string(data) != want {
			t.Errorf("file %d: expected %q, got %q", i, want, data)
		}
		if filepath.Dir(spooled[i].Path) != dir {
			t.Errorf("file %d spooled outside upload dir: %s", i, spooled[i].Path)
		}
	}
	if spooled[0].Path == spooled[1].Path {
		t.Error("duplicate names must not share a path")
	}
}

func TestSpoolUploads_StripsDirectories(t *testing.T) {
	headers := formFileHeaders(t, "targets", []formFile{
		{"targets", "../../etc/clip.mp4", []byte("x")},
	})

	spooled, err := spoolUploads(headers, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spooled[0].Name != "clip.mp4" {
		t.Errorf("expected sanitized name clip.mp4, got %s", spooled[0].Name)
	}
}

func TestNewUploadDir_CreatesBase(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "staging")

	dir, err := newUploadDir(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(dir, base) {
		t.Errorf("expected upload dir under %s, got %s", base, dir)
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		t.Errorf("upload dir not created: %v", err)
	}
}

func TestVideoInputs_UsesClientNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "001-a.mp4")
	if err := os.WriteFile(path, []byte("video"), 0o600); err != nil {
		t.Fatal(err)
	}

	inputs := videoInputs([]spooledFile{{Name: "a.mp4", Path: path}})
	if len(inputs) != 1 || inputs[0].Name != "a.mp4" {
		t.Fatalf("unexpected inputs: %+v", inputs)
	}
	rc, err := inputs[0].Open()
	if err != nil {
		t.Fatalf("failed to open input: %v", err)
	}
	rc.Close()
}
