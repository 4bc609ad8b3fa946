// Package swap orchestrates face-swap requests: it validates input, stages
// uploads into a scoped workspace, dispatches them to the swap engine and
// collects the produced artifacts into the output directory.
package swap

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Mode selects the swap pipeline.
type Mode int

const (
	ModeImage Mode = iota + 1
	ModeMultiVideo
)

func (m Mode) String() string {
	switch m {
	case ModeImage:
		return "image"
	case ModeMultiVideo:
		return "multi_video"
	default:
		return "unknown"
	}
}

// Label is the human-readable mode name shown in the UI.
func (m Mode) Label() string {
	switch m {
	case ModeImage:
		return "Image"
	case ModeMultiVideo:
		return "Multi Video"
	default:
		return "Unknown"
	}
}

// Modes lists all modes in display order.
func Modes() []Mode {
	return []Mode{ModeImage, ModeMultiVideo}
}

// ParseMode accepts the API names ("image", "multi_video") as well as the
// display labels ("Image", "Multi Video").
func ParseMode(s string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "image":
		return ModeImage, nil
	case "multi_video", "multivideo", "video", "videos":
		return ModeMultiVideo, nil
	}
	return 0, &ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", s)}
}

// ImageInput is an uploaded image and its client-supplied file name.
type ImageInput struct {
	Name string
	Data []byte
}

// VideoInput is an uploaded video. Open is called once during staging.
type VideoInput struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// VideoFromFile returns a VideoInput reading the file at path.
func VideoFromFile(path string) VideoInput {
	return VideoInput{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) }, //nolint:gosec // caller-provided path
	}
}

// ProgressInfo contains progress information for callbacks
type ProgressInfo struct {
	Phase   string // "staging", "registering", "swapping", "collecting"
	Current int
	Total   int
	Target  string
	Message string
}

// Request is one user-initiated swap.
type Request struct {
	Mode Mode

	// Source is the encoded source face image.
	Source []byte

	// Target is used in image mode.
	Target *ImageInput

	// Videos are used in multi-video mode, processed in order.
	Videos []VideoInput

	Enhance bool

	OnProgress func(ProgressInfo) // Optional progress callback
}

func (r *Request) progress(p ProgressInfo) {
	if r.OnProgress != nil {
		r.OnProgress(p)
	}
}

// targetCount returns how many targets the request carries for its mode.
func (r *Request) targetCount() int {
	switch r.Mode {
	case ModeImage:
		if r.Target != nil && len(r.Target.Data) > 0 {
			return 1
		}
		return 0
	case ModeMultiVideo:
		return len(r.Videos)
	}
	return 0
}

// Status is the overall outcome of a request.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusValidationError Status = "validation_error"
	StatusStorageError    Status = "storage_error"
	StatusEngineError     Status = "engine_error"
)

// Result is created once per request and not modified afterwards.
type Result struct {
	RequestID string   `json:"request_id"`
	Status    Status   `json:"status"`
	Message   string   `json:"message"`
	Outputs   []string `json:"outputs"`

	// Partial is set when a batch failed after producing some outputs.
	Partial      bool   `json:"partial,omitempty"`
	FailedTarget string `json:"failed_target,omitempty"`
}

// OK reports whether the request succeeded.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}
