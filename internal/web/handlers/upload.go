package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-swap/internal/constants"
	"github.com/kozaktomas/face-swap/internal/staging"
	"github.com/kozaktomas/face-swap/internal/swap"
)

// spooledFile is an upload copied out of the multipart form, which net/http
// removes as soon as the handler returns.
type spooledFile struct {
	Name string // sanitized client file name
	Path string
}

// spoolUploads copies uploaded files into dir. Each file gets its own
// numbered name on disk so uploads sharing a base name do not overwrite
// each other; the client name is kept for output naming.
func spoolUploads(files []*multipart.FileHeader, dir string) ([]spooledFile, error) {
	var spooled []spooledFile
	for i, fileHeader := range files {
		if err := func() error {
			safeName, err := staging.SanitizeName(fileHeader.Filename)
			if err != nil {
				return fmt.Errorf("invalid file name: %s", sanitizeForLog(fileHeader.Filename))
			}

			file, err := fileHeader.Open()
			if err != nil {
				return fmt.Errorf("failed to open file: %s", safeName)
			}
			defer file.Close()

			tempPath := filepath.Join(dir, fmt.Sprintf("%03d-%s", i+1, safeName))
			out, err := os.Create(tempPath) //nolint:gosec // filename sanitized via staging.SanitizeName
			if err != nil {
				return errors.New("failed to create temp file")
			}

			if _, err := io.Copy(out, file); err != nil {
				out.Close()
				return errors.New("failed to save file")
			}
			if err := out.Close(); err != nil {
				return errors.New("failed to save file")
			}

			spooled = append(spooled, spooledFile{Name: safeName, Path: tempPath})
			return nil
		}(); err != nil {
			return nil, err
		}
	}
	return spooled, nil
}

// newUploadDir creates a private directory for spooled uploads under base.
func newUploadDir(base string) (string, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o755); err != nil {
			return "", err
		}
	}
	return os.MkdirTemp(base, constants.UploadPattern)
}

// readUpload reads a single form file fully into memory.
func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// videoInputs turns spooled files into orchestrator inputs.
func videoInputs(files []spooledFile) []swap.VideoInput {
	inputs := make([]swap.VideoInput, len(files))
	for i, f := range files {
		in := swap.VideoFromFile(f.Path)
		in.Name = f.Name
		inputs[i] = in
	}
	return inputs
}
