// Package engine wraps the external face-swap engine.
//
// The engine runs as a sidecar (face2face behind a small HTTP API) and owns
// all face detection, identity embedding, blending and video frame work. This
// package only defines the contract the orchestrator relies on and a client
// that speaks to the sidecar.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Client is the capability set the orchestrator needs from a swap engine.
//
// An empty enhanceModel disables the enhancement pass. RegisterFace mutates
// a face registry shared by every later SwapVideo call for the same label, so
// callers serving concurrent requests must either use distinct labels or hold
// the label's lock from registration through the last swap (see LabelLocks).
type Client interface {
	// SwapImageToImage swaps the face from sourcePath into targetPath and
	// returns the result as an RGB image.
	SwapImageToImage(ctx context.Context, sourcePath, targetPath, enhanceModel string) (*RawImage, error)

	// RegisterFace computes and caches the identity embedding of img under
	// label. With persist the embedding is also written to durable storage.
	RegisterFace(ctx context.Context, label string, img *RawImage, persist bool) error

	// SwapVideo applies the registered identity to every frame of video.
	// Frames without a detectable face are passed through unchanged.
	SwapVideo(ctx context.Context, label string, video VideoRef, enhanceModel string) (VideoRef, error)
}

// VideoRef points at a video file on local disk.
type VideoRef struct {
	Name string // original file name, used for output naming
	Path string
}

// Stem returns the base name of the video without its extension.
func (v VideoRef) Stem() string {
	name := v.Name
	if name == "" {
		name = v.Path
	}
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var (
	// ErrNoFace is returned when an input contains no detectable face.
	ErrNoFace = errors.New("no face detected")
	// ErrUndecodable is returned when an input cannot be decoded as media.
	ErrUndecodable = errors.New("media could not be decoded")
	// ErrUnknownFace is returned when a label has not been registered.
	ErrUnknownFace = errors.New("face label not registered")
)

// APIError is a non-success response from the engine sidecar.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("engine error (status %d, %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("engine error (status %d): %s", e.Status, e.Message)
}

// Unwrap maps well-known error codes to the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "no_face":
		return ErrNoFace
	case "undecodable":
		return ErrUndecodable
	case "unknown_face":
		return ErrUnknownFace
	}
	return nil
}
