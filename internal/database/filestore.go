package database

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// FileFaceStore keeps registered faces in a single gob file.
// The whole file is rewritten on every change via temp file + rename.
type FileFaceStore struct {
	path  string
	faces map[string]StoredFace
	mu    sync.RWMutex
}

// OpenFileFaceStore loads the store at path, starting empty when the file does not exist.
func OpenFileFaceStore(path string) (*FileFaceStore, error) {
	if path == "" {
		return nil, errors.New("face store path is required")
	}

	s := &FileFaceStore{
		path:  path,
		faces: make(map[string]StoredFace),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading face store: %w", err)
	}

	var export fileExport
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding face store %s: %w", path, err)
	}
	if export.Version > currentExportVersion {
		return nil, fmt.Errorf("face store %s has unsupported version %d", path, export.Version)
	}
	for _, f := range export.Faces {
		s.faces[f.Label] = f
	}
	return s, nil
}

// Path returns the backing file path.
func (s *FileFaceStore) Path() string {
	return s.path
}

// save writes all faces to disk. Caller must hold the write lock.
func (s *FileFaceStore) save() error {
	export := fileExport{
		Version:    currentExportVersion,
		ExportedAt: time.Now(),
		Faces:      s.sortedLocked(),
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(export); err != nil {
		return fmt.Errorf("encoding face store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating face store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".faces-*.gob")
	if err != nil {
		return fmt.Errorf("creating temp face store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing face store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing face store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing face store: %w", err)
	}
	return nil
}

func (s *FileFaceStore) sortedLocked() []StoredFace {
	faces := make([]StoredFace, 0, len(s.faces))
	for _, f := range s.faces {
		faces = append(faces, f)
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].Label < faces[j].Label })
	return faces
}

// SaveFace stores a face, replacing any face with the same label.
func (s *FileFaceStore) SaveFace(ctx context.Context, face StoredFace) error {
	if face.Label == "" {
		return errors.New("face label is required")
	}
	if face.CreatedAt.IsZero() {
		face.CreatedAt = time.Now()
	}
	if face.Dim == 0 {
		face.Dim = len(face.Embedding)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.faces[face.Label]
	s.faces[face.Label] = face
	if err := s.save(); err != nil {
		if existed {
			s.faces[face.Label] = prev
		} else {
			delete(s.faces, face.Label)
		}
		return err
	}
	return nil
}

// GetFace retrieves a face by label, returns nil if not found.
func (s *FileFaceStore) GetFace(ctx context.Context, label string) (*StoredFace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.faces[label]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// ListFaces returns all stored faces ordered by label.
func (s *FileFaceStore) ListFaces(ctx context.Context) ([]StoredFace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(), nil
}

// DeleteFace removes a face, reporting whether it existed.
func (s *FileFaceStore) DeleteFace(ctx context.Context, label string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.faces[label]
	if !ok {
		return false, nil
	}
	delete(s.faces, label)
	if err := s.save(); err != nil {
		s.faces[label] = prev
		return false, err
	}
	return true, nil
}

var _ FaceStore = (*FileFaceStore)(nil)
