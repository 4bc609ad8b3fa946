// Package staging provides request-scoped temporary workspaces for uploaded
// media. A Workspace is created by Area.Acquire and removed by Release, which
// is idempotent so it can be deferred and also called on cancellation.
package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kozaktomas/face-swap/internal/constants"
	"github.com/shirou/gopsutil/v3/disk"
)

// StorageError reports a failed staging read or write.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("staging %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("staging %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Area creates workspaces below a base directory.
type Area struct {
	baseDir      string
	minFreeBytes uint64
}

// New creates a staging area. An empty baseDir uses the OS temp directory.
// When minFreeBytes is non-zero, Acquire refuses to create a workspace on a
// filesystem with less free space than that.
func New(baseDir string, minFreeBytes uint64) *Area {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Area{baseDir: baseDir, minFreeBytes: minFreeBytes}
}

// BaseDir returns the directory workspaces are created in.
func (a *Area) BaseDir() string {
	return a.baseDir
}

// Acquire creates a new uniquely named workspace.
func (a *Area) Acquire(ctx context.Context) (*Workspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StorageError{Op: "acquire", Err: err}
	}

	if err := os.MkdirAll(a.baseDir, 0o755); err != nil {
		return nil, &StorageError{Op: "acquire", Path: a.baseDir, Err: err}
	}

	if a.minFreeBytes > 0 {
		usage, err := disk.UsageWithContext(ctx, a.baseDir)
		if err != nil {
			return nil, &StorageError{Op: "acquire", Path: a.baseDir, Err: fmt.Errorf("reading disk usage: %w", err)}
		}
		if usage.Free < a.minFreeBytes {
			return nil, &StorageError{
				Op:   "acquire",
				Path: a.baseDir,
				Err:  fmt.Errorf("insufficient free space: %d bytes free, %d required", usage.Free, a.minFreeBytes),
			}
		}
	}

	dir, err := os.MkdirTemp(a.baseDir, constants.WorkspacePattern)
	if err != nil {
		return nil, &StorageError{Op: "acquire", Path: a.baseDir, Err: err}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		os.RemoveAll(dir)
		return nil, &StorageError{Op: "acquire", Path: dir, Err: err}
	}
	return &Workspace{dir: abs}, nil
}

// Workspace is a temporary directory owned by a single request.
type Workspace struct {
	dir        string
	once       sync.Once
	releaseErr error
}

// Dir returns the absolute workspace path.
func (w *Workspace) Dir() string {
	return w.dir
}

// SanitizeName reduces a client-supplied filename to its base name. Both
// slash and backslash count as separators since browsers on Windows may send
// full paths. Names that do not name a regular entry are rejected.
func SanitizeName(name string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if base == "" || base == "." || base == ".." || base == "/" || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return base, nil
}

// path resolves subdir/name inside the workspace, creating subdir if needed.
func (w *Workspace) path(subdir, name string) (string, error) {
	safe, err := SanitizeName(name)
	if err != nil {
		return "", &StorageError{Op: "write", Path: name, Err: err}
	}

	dir := w.dir
	if subdir != "" {
		dir = filepath.Join(w.dir, filepath.Base(subdir))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &StorageError{Op: "write", Path: dir, Err: err}
	}
	return filepath.Join(dir, safe), nil
}

// WriteFile writes data to subdir/name and returns the absolute path.
func (w *Workspace) WriteFile(subdir, name string, data []byte) (string, error) {
	p, err := w.path(subdir, name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", &StorageError{Op: "write", Path: p, Err: err}
	}
	return p, nil
}

// CopyFrom streams r into subdir/name and returns the absolute path.
func (w *Workspace) CopyFrom(subdir, name string, r io.Reader) (string, error) {
	p, err := w.path(subdir, name)
	if err != nil {
		return "", err
	}

	out, err := os.Create(p) //nolint:gosec // filename sanitized via SanitizeName
	if err != nil {
		return "", &StorageError{Op: "write", Path: p, Err: err}
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return "", &StorageError{Op: "write", Path: p, Err: err}
	}
	if err := out.Close(); err != nil {
		return "", &StorageError{Op: "write", Path: p, Err: err}
	}
	return p, nil
}

// Release removes the workspace and everything in it.
// Only the first call does any work; later calls return the first result.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.releaseErr = &StorageError{Op: "release", Path: w.dir, Err: err}
		}
	})
	return w.releaseErr
}
