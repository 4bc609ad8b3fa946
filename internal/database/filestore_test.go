package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileFaceStore_SaveAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "faces", "faces.gob")

	store, err := OpenFileFaceStore(path)
	if err != nil {
		t.Fatalf("OpenFileFaceStore failed: %v", err)
	}

	face := StoredFace{Label: "source_face", Embedding: []float32{0.1, 0.2, 0.3}, Model: "insightface"}
	if err := store.SaveFace(ctx, face); err != nil {
		t.Fatalf("SaveFace failed: %v", err)
	}

	reopened, err := OpenFileFaceStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	got, err := reopened.GetFace(ctx, "source_face")
	if err != nil {
		t.Fatalf("GetFace failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected face after reload")
	}
	if got.Dim != 3 {
		t.Errorf("expected dim 3, got %d", got.Dim)
	}
	if got.Model != "insightface" {
		t.Errorf("expected model 'insightface', got '%s'", got.Model)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != 0.2 {
		t.Errorf("unexpected embedding %v", got.Embedding)
	}
}

func TestFileFaceStore_GetMissing(t *testing.T) {
	store, err := OpenFileFaceStore(filepath.Join(t.TempDir(), "faces.gob"))
	if err != nil {
		t.Fatalf("OpenFileFaceStore failed: %v", err)
	}

	got, err := store.GetFace(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetFace failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestFileFaceStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store, err := OpenFileFaceStore(filepath.Join(t.TempDir(), "faces.gob"))
	if err != nil {
		t.Fatalf("OpenFileFaceStore failed: %v", err)
	}

	for _, label := range []string{"zoe", "adam", "mia"} {
		if err := store.SaveFace(ctx, StoredFace{Label: label, Embedding: []float32{1}}); err != nil {
			t.Fatalf("SaveFace(%s) failed: %v", label, err)
		}
	}

	faces, err := store.ListFaces(ctx)
	if err != nil {
		t.Fatalf("ListFaces failed: %v", err)
	}
	want := []string{"adam", "mia", "zoe"}
	if len(faces) != len(want) {
		t.Fatalf("expected %d faces, got %d", len(want), len(faces))
	}
	for i, label := range want {
		if faces[i].Label != label {
			t.Errorf("faces[%d] = %s; want %s", i, faces[i].Label, label)
		}
	}

	deleted, err := store.DeleteFace(ctx, "mia")
	if err != nil || !deleted {
		t.Fatalf("DeleteFace(mia) = %v, %v", deleted, err)
	}
	deleted, err = store.DeleteFace(ctx, "mia")
	if err != nil || deleted {
		t.Errorf("second DeleteFace(mia) = %v, %v; want false, nil", deleted, err)
	}
}

func TestFileFaceStore_RejectsEmptyLabel(t *testing.T) {
	store, err := OpenFileFaceStore(filepath.Join(t.TempDir(), "faces.gob"))
	if err != nil {
		t.Fatalf("OpenFileFaceStore failed: %v", err)
	}
	if err := store.SaveFace(context.Background(), StoredFace{}); err == nil {
		t.Error("expected error for empty label")
	}
}

func TestOpenFileFaceStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.gob")
	if err := os.WriteFile(path, []byte("definitely not gob"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := OpenFileFaceStore(path); err == nil {
		t.Error("expected error for corrupt store")
	}
}
