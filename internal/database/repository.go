package database

import (
	"context"
)

// FaceStore persists registered face embeddings so a later process can reuse
// them without recomputation.
type FaceStore interface {
	// SaveFace stores a face, replacing any face with the same label
	SaveFace(ctx context.Context, face StoredFace) error
	// GetFace retrieves a face by label, returns nil if not found
	GetFace(ctx context.Context, label string) (*StoredFace, error)
	// ListFaces returns all stored faces ordered by label
	ListFaces(ctx context.Context) ([]StoredFace, error)
	// DeleteFace removes a face, reporting whether it existed
	DeleteFace(ctx context.Context, label string) (bool, error)
}
