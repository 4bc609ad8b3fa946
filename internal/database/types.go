package database

import (
	"time"
)

// StoredFace is a registered source identity: the embedding the swap engine
// computed for a labelled face image.
type StoredFace struct {
	Label     string
	Embedding []float32
	Model     string
	Dim       int
	CreatedAt time.Time
}

// fileExport is the gob payload written by FileFaceStore.
type fileExport struct {
	Version    int
	ExportedAt time.Time
	Faces      []StoredFace
}

const currentExportVersion = 1
