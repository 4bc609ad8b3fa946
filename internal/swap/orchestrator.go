package swap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-swap/internal/constants"
	"github.com/kozaktomas/face-swap/internal/engine"
	"github.com/kozaktomas/face-swap/internal/staging"
	"github.com/rs/zerolog"
)

// State is a step of the request state machine.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateStaging     State = "staging"
	StateDispatching State = "dispatching"
	StateCollecting  State = "collecting"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Verifier checks a swapped video against its input.
type Verifier interface {
	Verify(ctx context.Context, input, output string) error
}

// Options configure an Orchestrator.
type Options struct {
	OutputDir     string
	EnhanceModel  string        // model used when a request enables enhancement
	FaceLabel     string        // registry label for the source face
	IsolateLabels bool          // append the request ID to FaceLabel
	PersistFaces  bool          // ask the engine to store registered faces
	Timeout       time.Duration // per request, zero disables
	JPEGQuality   int
	VerifyVideos  bool
}

// Orchestrator runs swap requests against one shared engine.
// It is safe for concurrent use; requests sharing a face label are
// serialized from registration through their last video.
type Orchestrator struct {
	engine   engine.Client
	staging  *staging.Area
	locks    *engine.LabelLocks
	opts     Options
	verifier Verifier
	logger   zerolog.Logger
}

// New creates an orchestrator.
func New(client engine.Client, area *staging.Area, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.OutputDir == "" {
		opts.OutputDir = "output_folder"
	}
	if opts.EnhanceModel == "" {
		opts.EnhanceModel = constants.DefaultEnhanceModel
	}
	if opts.FaceLabel == "" {
		opts.FaceLabel = constants.DefaultFaceLabel
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = constants.DefaultJPEGQuality
	}
	return &Orchestrator{
		engine:  client,
		staging: area,
		locks:   engine.NewLabelLocks(),
		opts:    opts,
		logger:  logger.With().Str("component", "orchestrator").Logger(),
	}
}

// SetVerifier enables post-swap video verification. Only used when
// Options.VerifyVideos is set.
func (o *Orchestrator) SetVerifier(v Verifier) {
	o.verifier = v
}

// Options returns the effective options.
func (o *Orchestrator) Options() Options {
	return o.opts
}

// Validate checks the request shape without touching disk or the engine.
func Validate(req *Request) error {
	if req == nil {
		return &ValidationError{Field: "request", Reason: "missing"}
	}
	if len(req.Source) == 0 {
		return &ValidationError{Field: "source", Reason: "source image is required"}
	}

	switch req.Mode {
	case ModeImage:
		if req.Target == nil || len(req.Target.Data) == 0 {
			return &ValidationError{Field: "target", Reason: "target image is required"}
		}
	case ModeMultiVideo:
		if len(req.Videos) == 0 {
			return &ValidationError{Field: "targets", Reason: "at least one target video is required"}
		}
		if len(req.Videos) > constants.MaxVideoTargets {
			return &ValidationError{Field: "targets", Reason: fmt.Sprintf("at most %d videos per request", constants.MaxVideoTargets)}
		}
		for i, v := range req.Videos {
			if v.Open == nil {
				return &ValidationError{Field: "targets", Reason: fmt.Sprintf("video %d has no content", i+1)}
			}
			if _, err := staging.SanitizeName(v.Name); err != nil {
				return &ValidationError{Field: "targets", Reason: fmt.Sprintf("video %d: %v", i+1, err)}
			}
		}
	default:
		return &ValidationError{Field: "mode", Reason: fmt.Sprintf("unsupported mode %d", req.Mode)}
	}
	return nil
}

// run carries the state of one request.
type run struct {
	o      *Orchestrator
	req    *Request
	id     string
	state  State
	logger zerolog.Logger
	start  time.Time
}

func (r *run) transition(to State) {
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(to)).Msg("state transition")
	r.state = to
}

func (r *run) succeed(message string, outputs []string) *Result {
	r.transition(StateDone)
	r.logger.Info().
		Int("outputs", len(outputs)).
		Dur("elapsed", time.Since(r.start)).
		Msg("swap complete")
	return &Result{RequestID: r.id, Status: StatusSuccess, Message: message, Outputs: outputs}
}

func (r *run) fail(err error, outputs []string) *Result {
	r.transition(StateFailed)
	res := &Result{
		RequestID: r.id,
		Status:    StatusOf(err),
		Message:   UserMessage(err),
		Outputs:   outputs,
	}
	if res.Outputs == nil {
		res.Outputs = []string{}
	}
	var eerr *EngineError
	if errors.As(err, &eerr) {
		res.FailedTarget = eerr.Target
	}
	res.Partial = len(res.Outputs) > 0

	r.logger.Warn().Err(err).
		Str("status", string(res.Status)).
		Int("outputs", len(res.Outputs)).
		Dur("elapsed", time.Since(r.start)).
		Msg("swap failed")
	return res
}

// Run executes req and always returns a result; errors are reported through
// Result.Status and Result.Message. The staging workspace is released before
// Run returns, whatever the outcome.
func (o *Orchestrator) Run(ctx context.Context, req *Request) *Result {
	id := uuid.New().String()
	r := &run{
		o:      o,
		req:    req,
		id:     id,
		state:  StateIdle,
		start:  time.Now(),
		logger: o.logger.With().Str("request_id", id).Logger(),
	}

	r.transition(StateValidating)
	if err := Validate(req); err != nil {
		return r.fail(err, nil)
	}
	r.logger = r.logger.With().Str("mode", req.Mode.String()).Int("targets", req.targetCount()).Logger()

	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	r.transition(StateStaging)
	ws, err := o.staging.Acquire(ctx)
	if err != nil {
		return r.fail(err, nil)
	}
	defer func() {
		if err := ws.Release(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to release workspace")
		}
	}()

	switch req.Mode {
	case ModeImage:
		return r.runImage(ctx, ws)
	default:
		return r.runVideos(ctx, ws)
	}
}

func (r *run) enhanceModel() string {
	if !r.req.Enhance {
		return ""
	}
	return r.o.opts.EnhanceModel
}

func (r *run) stageSource(ws *staging.Workspace) (string, error) {
	r.req.progress(ProgressInfo{Phase: "staging", Message: "Staging source image"})
	return ws.WriteFile(constants.SourceDir, constants.SourceStem+sourceExt(r.req.Source), r.req.Source)
}

func (r *run) runImage(ctx context.Context, ws *staging.Workspace) *Result {
	sourcePath, err := r.stageSource(ws)
	if err != nil {
		return r.fail(err, nil)
	}

	targetName, err := staging.SanitizeName(r.req.Target.Name)
	if err != nil {
		targetName = constants.DefaultTargetName
	}
	targetPath, err := ws.WriteFile(constants.TargetDir, targetName, r.req.Target.Data)
	if err != nil {
		return r.fail(err, nil)
	}

	r.transition(StateDispatching)
	r.req.progress(ProgressInfo{Phase: "swapping", Current: 1, Total: 1, Target: targetName})
	img, err := r.o.engine.SwapImageToImage(ctx, sourcePath, targetPath, r.enhanceModel())
	if err != nil {
		return r.fail(&EngineError{Op: "swap image", Target: targetName, Err: err}, nil)
	}
	if img == nil || len(img.Pix) == 0 {
		return r.fail(&EngineError{Op: "swap image", Target: targetName, Err: errEmptyResult}, nil)
	}

	r.transition(StateCollecting)
	r.req.progress(ProgressInfo{Phase: "collecting", Current: 1, Total: 1, Target: targetName})
	if err := os.MkdirAll(r.o.opts.OutputDir, 0o755); err != nil {
		return r.fail(&staging.StorageError{Op: "collect", Path: r.o.opts.OutputDir, Err: err}, nil)
	}
	out := filepath.Join(r.o.opts.OutputDir, OutputName(targetName, constants.ImageOutputExt))
	if err := img.WriteJPEG(out, r.o.opts.JPEGQuality); err != nil {
		return r.fail(&staging.StorageError{Op: "collect", Path: out, Err: err}, nil)
	}

	return r.succeed("Image swap complete", []string{out})
}

// stagedVideo is a target video copied into the workspace.
type stagedVideo struct {
	name string
	path string
}

// swappedVideo is an engine artifact waiting to be collected.
type swappedVideo struct {
	name string
	path string
}

func (r *run) stageVideos(ws *staging.Workspace) ([]stagedVideo, error) {
	staged := make([]stagedVideo, 0, len(r.req.Videos))
	for i, v := range r.req.Videos {
		name, err := staging.SanitizeName(v.Name)
		if err != nil {
			return nil, &staging.StorageError{Op: "write", Path: v.Name, Err: err}
		}
		r.req.progress(ProgressInfo{Phase: "staging", Current: i + 1, Total: len(r.req.Videos), Target: name})

		rc, err := v.Open()
		if err != nil {
			return nil, &staging.StorageError{Op: "read", Path: name, Err: err}
		}
		path, err := ws.CopyFrom(fmt.Sprintf("%s-%d", constants.TargetDir, i+1), name, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		staged = append(staged, stagedVideo{name: name, path: path})
	}
	return staged, nil
}

func (r *run) faceLabel() string {
	if r.o.opts.IsolateLabels {
		return r.o.opts.FaceLabel + "-" + r.id
	}
	return r.o.opts.FaceLabel
}

func (r *run) runVideos(ctx context.Context, ws *staging.Workspace) *Result {
	sourcePath, err := r.stageSource(ws)
	if err != nil {
		return r.fail(err, nil)
	}
	videos, err := r.stageVideos(ws)
	if err != nil {
		return r.fail(err, nil)
	}

	r.transition(StateDispatching)
	swapped, dispatchErr := r.dispatchVideos(ctx, sourcePath, videos)

	// Outputs of targets that finished before a failure are kept.
	r.transition(StateCollecting)
	outputs, err := r.collectVideos(swapped)
	if err != nil {
		return r.fail(err, outputs)
	}
	if dispatchErr != nil {
		return r.fail(dispatchErr, outputs)
	}

	return r.succeed(fmt.Sprintf("Multi-video swap complete (%d videos)", len(outputs)), outputs)
}

// dispatchVideos registers the source face once and swaps every video in
// order, stopping at the first failure.
func (r *run) dispatchVideos(ctx context.Context, sourcePath string, videos []stagedVideo) ([]swappedVideo, error) {
	source, err := engine.ReadRawImage(sourcePath)
	if err != nil {
		return nil, &EngineError{Op: "decode source", Err: err}
	}

	label := r.faceLabel()
	unlock, err := r.o.locks.Lock(ctx, label)
	if err != nil {
		return nil, &EngineError{Op: "register face", Err: err}
	}
	defer unlock()

	r.req.progress(ProgressInfo{Phase: "registering", Total: len(videos), Message: "Registering source face"})
	if err := r.o.engine.RegisterFace(ctx, label, source, r.o.opts.PersistFaces); err != nil {
		return nil, &EngineError{Op: "register face", Err: err}
	}
	r.logger.Debug().Str("label", label).Msg("source face registered")

	model := r.enhanceModel()
	swapped := make([]swappedVideo, 0, len(videos))
	for i, v := range videos {
		if err := ctx.Err(); err != nil {
			return swapped, &EngineError{Op: "swap video", Target: v.name, Err: err}
		}
		r.req.progress(ProgressInfo{Phase: "swapping", Current: i + 1, Total: len(videos), Target: v.name})

		out, err := r.o.engine.SwapVideo(ctx, label, engine.VideoRef{Name: v.name, Path: v.path}, model)
		if err != nil {
			return swapped, &EngineError{Op: "swap video", Target: v.name, Err: err}
		}

		if r.o.opts.VerifyVideos && r.o.verifier != nil {
			if err := r.o.verifier.Verify(ctx, v.path, out.Path); err != nil {
				return swapped, &EngineError{Op: "verify video", Target: v.name, Err: err}
			}
		}

		r.logger.Debug().Str("target", v.name).Int("index", i+1).Msg("video swapped")
		swapped = append(swapped, swappedVideo{name: v.name, path: out.Path})
	}
	return swapped, nil
}

// collectVideos copies engine artifacts from the workspace to the output
// directory in order and returns the paths written so far.
func (r *run) collectVideos(swapped []swappedVideo) ([]string, error) {
	outputs := make([]string, 0, len(swapped))
	if len(swapped) == 0 {
		return outputs, nil
	}
	if err := os.MkdirAll(r.o.opts.OutputDir, 0o755); err != nil {
		return outputs, &staging.StorageError{Op: "collect", Path: r.o.opts.OutputDir, Err: err}
	}

	for i, s := range swapped {
		r.req.progress(ProgressInfo{Phase: "collecting", Current: i + 1, Total: len(swapped), Target: s.name})
		dst := filepath.Join(r.o.opts.OutputDir, OutputName(s.name, constants.VideoOutputExt))
		if err := copyFile(s.path, dst); err != nil {
			return outputs, &staging.StorageError{Op: "collect", Path: dst, Err: err}
		}
		outputs = append(outputs, dst)
	}
	return outputs, nil
}

// copyFile copies src to dst through a temporary file in dst's directory,
// so dst either holds the full copy or does not exist.
func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // engine artifact path
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*"+filepath.Ext(dst))
	if err != nil {
		return err
	}
	tmp := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
