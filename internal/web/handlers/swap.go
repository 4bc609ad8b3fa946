package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-swap/internal/config"
	"github.com/kozaktomas/face-swap/internal/constants"
	"github.com/kozaktomas/face-swap/internal/staging"
	"github.com/kozaktomas/face-swap/internal/swap"
	"github.com/rs/zerolog/log"
)

// Runner executes swap requests.
type Runner interface {
	Run(ctx context.Context, req *swap.Request) *swap.Result
}

// SwapHandler handles swap job endpoints
type SwapHandler struct {
	config     *config.Config
	runner     Runner
	jobManager *JobManager
}

// NewSwapHandler creates a new swap handler
func NewSwapHandler(cfg *config.Config, runner Runner, jm *JobManager) *SwapHandler {
	return &SwapHandler{
		config:     cfg,
		runner:     runner,
		jobManager: jm,
	}
}

// parseBool accepts the usual checkbox encodings.
func parseBool(s string) bool {
	if s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// Start accepts a multipart swap request and runs it in the background.
func (h *SwapHandler) Start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBody)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form")
		return
	}

	modeValue := r.FormValue("mode")
	if modeValue == "" {
		modeValue = swap.ModeImage.String()
	}
	mode, err := swap.ParseMode(modeValue)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &swap.Request{Mode: mode, Enhance: parseBool(r.FormValue("enhance"))}

	if files := r.MultipartForm.File["source"]; len(files) > 0 {
		if req.Source, err = readUpload(files[0]); err != nil {
			respondError(w, http.StatusBadRequest, "failed to read source image")
			return
		}
	}

	var uploadDir string
	var targets []string
	switch mode {
	case swap.ModeImage:
		if files := r.MultipartForm.File["target"]; len(files) > 0 {
			data, err := readUpload(files[0])
			if err != nil {
				respondError(w, http.StatusBadRequest, "failed to read target image")
				return
			}
			req.Target = &swap.ImageInput{Name: files[0].Filename, Data: data}
			targets = []string{files[0].Filename}
		}
	case swap.ModeMultiVideo:
		files := r.MultipartForm.File["targets"]
		if len(files) > 0 && len(req.Source) > 0 {
			uploadDir, err = newUploadDir(h.config.Swap.StagingDir)
			if err != nil {
				log.Error().Err(err).Msg("failed to create upload dir")
				respondError(w, http.StatusInternalServerError, "failed to store uploads")
				return
			}
			spooled, err := spoolUploads(files, uploadDir)
			if err != nil {
				os.RemoveAll(uploadDir)
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			req.Videos = videoInputs(spooled)
			for _, f := range spooled {
				targets = append(targets, f.Name)
			}
		}
	}

	if err := swap.Validate(req); err != nil {
		if uploadDir != "" {
			os.RemoveAll(uploadDir)
		}
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":  swap.UserMessage(err),
			"status": string(swap.StatusValidationError),
		})
		return
	}

	jobID := uuid.New().String()
	job := h.jobManager.CreateJob(jobID, mode, req.Enhance, targets)

	ctx, cancel := context.WithCancel(context.Background())
	job.setCancel(cancel)

	go h.runSwapJob(ctx, cancel, job, req, uploadDir)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(JobStatusPending),
	})
}

// runSwapJob runs the swap job in the background
func (h *SwapHandler) runSwapJob(ctx context.Context, cancel context.CancelFunc, job *SwapJob, req *swap.Request, uploadDir string) {
	defer cancel()
	if uploadDir != "" {
		defer os.RemoveAll(uploadDir)
	}

	job.SendEvent(JobEvent{Type: "queued", Message: "Waiting for a free slot"})
	if err := h.jobManager.acquire(ctx); err != nil {
		h.cancelledJob(job)
		return
	}
	defer h.jobManager.release()

	job.mu.Lock()
	if job.Status == JobStatusCancelled {
		job.mu.Unlock()
		return
	}
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Swap job started"})

	req.OnProgress = func(info swap.ProgressInfo) {
		job.setProgress(info)
		job.SendEvent(JobEvent{
			Type:    "progress",
			Message: info.Message,
			Data: map[string]any{
				"phase":   info.Phase,
				"current": info.Current,
				"total":   info.Total,
				"target":  info.Target,
			},
		})
	}

	res := h.runner.Run(ctx, req)
	if uploadDir != "" {
		os.RemoveAll(uploadDir)
	}
	result := h.presentResult(res)

	job.mu.Lock()
	job.Result = result
	if job.Status == JobStatusCancelled {
		// Cancel already settled the job and notified listeners.
		job.mu.Unlock()
		log.Info().Str("job_id", job.ID).Str("status", string(res.Status)).Msg("swap job finished after cancel")
		return
	}
	if ctx.Err() != nil && !res.OK() {
		job.mu.Unlock()
		h.cancelledJob(job)
		return
	}

	now := time.Now()
	job.CompletedAt = &now
	if res.OK() {
		job.Status = JobStatusCompleted
		job.Progress = 100
	} else {
		job.Status = JobStatusFailed
		job.Error = res.Message
	}
	job.mu.Unlock()

	if res.OK() {
		log.Info().Str("job_id", job.ID).Int("outputs", len(result.Outputs)).Msg("swap job completed")
		job.SendEvent(JobEvent{Type: "completed", Message: res.Message, Data: result})
		return
	}
	log.Warn().Str("job_id", job.ID).Str("status", string(res.Status)).Msg("swap job failed")
	job.SendEvent(JobEvent{Type: "job_error", Message: res.Message, Data: result})
}

func (h *SwapHandler) cancelledJob(job *SwapJob) {
	job.mu.Lock()
	job.Status = JobStatusCancelled
	if job.CompletedAt == nil {
		now := time.Now()
		job.CompletedAt = &now
	}
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "cancelled", Message: "Job was cancelled"})
}

// presentResult maps output paths to download URLs.
func (h *SwapHandler) presentResult(res *swap.Result) *SwapJobResult {
	out := &SwapJobResult{
		Status:       res.Status,
		Message:      res.Message,
		Outputs:      make([]OutputFile, 0, len(res.Outputs)),
		Partial:      res.Partial,
		FailedTarget: res.FailedTarget,
	}
	for _, p := range res.Outputs {
		name := filepath.Base(p)
		kind := "image"
		if filepath.Ext(name) == constants.VideoOutputExt {
			kind = "video"
		}
		out.Outputs = append(out.Outputs, OutputFile{
			Name: name,
			Kind: kind,
			URL:  "/api/v1/outputs/" + name,
		})
	}
	return out
}

// Status returns the status of a swap job
func (h *SwapHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// List returns all known jobs
func (h *SwapHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.jobManager.ListJobs())
}

// Events streams job events via SSE
func (h *SwapHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job
		},
	)
}

// Cancel cancels a swap job
func (h *SwapHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	if !job.Cancel() {
		respondError(w, http.StatusConflict, "job already finished")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// Download serves a produced artifact from the output directory.
func (h *SwapHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	safe, err := staging.SanitizeName(name)
	if err != nil || safe != name {
		respondError(w, http.StatusBadRequest, "invalid file name")
		return
	}

	f, err := os.Open(filepath.Join(h.config.Swap.OutputDir, safe))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "file not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}

	if parseBool(r.URL.Query().Get("download")) {
		w.Header().Set("Content-Disposition", `attachment; filename="`+safe+`"`)
	}
	http.ServeContent(w, r, safe, stat.ModTime(), f)
}
