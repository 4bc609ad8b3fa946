package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-swap/internal/database"
	"github.com/pgvector/pgvector-go"
)

// FaceRepository provides PostgreSQL-backed storage for registered faces.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// SaveFace stores a face, replacing any face with the same label.
func (r *FaceRepository) SaveFace(ctx context.Context, face database.StoredFace) error {
	if face.Label == "" {
		return errors.New("face label is required")
	}
	if len(face.Embedding) == 0 {
		return errors.New("face embedding is required")
	}
	dim := face.Dim
	if dim == 0 {
		dim = len(face.Embedding)
	}

	query := `
		INSERT INTO swap_faces (label, embedding, model, dim, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (label) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model = EXCLUDED.model,
			dim = EXCLUDED.dim,
			created_at = EXCLUDED.created_at
	`
	if _, err := r.pool.Exec(ctx, query, face.Label, pgvector.NewVector(face.Embedding), face.Model, dim); err != nil {
		return fmt.Errorf("save face %s: %w", face.Label, err)
	}
	return nil
}

// GetFace retrieves a face by label, returns nil if not found.
func (r *FaceRepository) GetFace(ctx context.Context, label string) (*database.StoredFace, error) {
	query := `
		SELECT label, embedding, model, dim, created_at
		FROM swap_faces
		WHERE label = $1
	`

	var (
		f   database.StoredFace
		vec pgvector.Vector
	)
	err := r.pool.QueryRow(ctx, query, label).Scan(&f.Label, &vec, &f.Model, &f.Dim, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get face %s: %w", label, err)
	}
	f.Embedding = vec.Slice()
	return &f, nil
}

// ListFaces returns all stored faces ordered by label.
func (r *FaceRepository) ListFaces(ctx context.Context) ([]database.StoredFace, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT label, embedding, model, dim, created_at
		FROM swap_faces
		ORDER BY label
	`)
	if err != nil {
		return nil, fmt.Errorf("list faces: %w", err)
	}
	defer rows.Close()

	var faces []database.StoredFace
	for rows.Next() {
		var (
			f   database.StoredFace
			vec pgvector.Vector
		)
		if err := rows.Scan(&f.Label, &vec, &f.Model, &f.Dim, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		f.Embedding = vec.Slice()
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}

// DeleteFace removes a face, reporting whether it existed.
func (r *FaceRepository) DeleteFace(ctx context.Context, label string) (bool, error) {
	result, err := r.pool.Exec(ctx, "DELETE FROM swap_faces WHERE label = $1", label)
	if err != nil {
		return false, fmt.Errorf("delete face %s: %w", label, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete face %s: %w", label, err)
	}
	return n > 0, nil
}

var _ database.FaceStore = (*FaceRepository)(nil)
