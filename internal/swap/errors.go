package swap

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-swap/internal/engine"
	"github.com/kozaktomas/face-swap/internal/staging"
)

// errEmptyResult marks an engine response that carried no image data.
var errEmptyResult = errors.New("engine returned an empty image")

// ValidationError reports a request rejected before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EngineError wraps a swap engine failure with the step and target involved.
type EngineError struct {
	Op     string
	Target string
	Err    error
}

func (e *EngineError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// StatusOf classifies err into a result status.
func StatusOf(err error) Status {
	var verr *ValidationError
	var serr *staging.StorageError
	switch {
	case err == nil:
		return StatusSuccess
	case errors.As(err, &verr):
		return StatusValidationError
	case errors.As(err, &serr):
		return StatusStorageError
	default:
		return StatusEngineError
	}
}

// UserMessage turns err into the status line shown to the user.
func UserMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		if verr.Field == "source" || verr.Field == "target" || verr.Field == "targets" {
			return "Please upload both source and target files."
		}
		return "Invalid request: " + verr.Error()
	}

	var serr *staging.StorageError
	if errors.As(err, &serr) {
		return "Could not store files: " + serr.Error()
	}

	reason := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timed out"
	case errors.Is(err, context.Canceled):
		reason = "cancelled"
	case errors.Is(err, engine.ErrNoFace):
		reason = "no face detected"
	case errors.Is(err, engine.ErrUndecodable):
		reason = "file could not be decoded"
	case errors.Is(err, engine.ErrUnknownFace):
		reason = "source face is not registered"
	}

	var eerr *EngineError
	if errors.As(err, &eerr) && eerr.Target != "" {
		return fmt.Sprintf("Face swap failed on %s: %s", eerr.Target, reason)
	}
	return "Face swap failed: " + reason
}
