// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/kozaktomas/face-swap/internal/database"
)

// MockFaceStore is an in-memory implementation of database.FaceStore
type MockFaceStore struct {
	mu    sync.RWMutex
	faces map[string]database.StoredFace

	// Error injection
	SaveError   error
	GetError    error
	ListError   error
	DeleteError error

	// Call counters
	SaveCalls int
	GetCalls  int
}

// NewMockFaceStore creates a new mock face store
func NewMockFaceStore() *MockFaceStore {
	return &MockFaceStore{
		faces: make(map[string]database.StoredFace),
	}
}

// AddFace adds a face to the mock store without counting a save
func (m *MockFaceStore) AddFace(face database.StoredFace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces[face.Label] = face
}

// SaveFace stores a face
func (m *MockFaceStore) SaveFace(ctx context.Context, face database.StoredFace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.faces[face.Label] = face
	return nil
}

// GetFace retrieves a face by label
func (m *MockFaceStore) GetFace(ctx context.Context, label string) (*database.StoredFace, error) {
	m.mu.Lock()
	m.GetCalls++
	m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.faces[label]
	if !ok {
		return nil, nil
	}
	return &f, nil
}

// ListFaces returns all faces ordered by label
func (m *MockFaceStore) ListFaces(ctx context.Context) ([]database.StoredFace, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	faces := make([]database.StoredFace, 0, len(m.faces))
	for _, f := range m.faces {
		faces = append(faces, f)
	}
	sort.Slice(faces, func(i, j int) bool { return faces[i].Label < faces[j].Label })
	return faces, nil
}

// DeleteFace removes a face
func (m *MockFaceStore) DeleteFace(ctx context.Context, label string) (bool, error) {
	if m.DeleteError != nil {
		return false, m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.faces[label]
	delete(m.faces, label)
	return ok, nil
}

var _ database.FaceStore = (*MockFaceStore)(nil)
