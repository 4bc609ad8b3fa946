package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/kozaktomas/face-swap/internal/constants"
	"github.com/kozaktomas/face-swap/internal/swap"
	"golang.org/x/sync/semaphore"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// SwapJob represents an async swap request.
type SwapJob struct {
	EventBroadcaster

	ID          string
	Mode        swap.Mode
	Enhance     bool
	Targets     []string
	Status      JobStatus
	Phase       string
	Current     int
	Total       int
	Progress    int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
	Result      *SwapJobResult
}

// SwapJobResult is the presentation form of a swap.Result.
type SwapJobResult struct {
	Status       swap.Status  `json:"status"`
	Message      string       `json:"message"`
	Outputs      []OutputFile `json:"outputs"`
	Partial      bool         `json:"partial,omitempty"`
	FailedTarget string       `json:"failed_target,omitempty"`
}

// OutputFile is one produced artifact and where to download it.
type OutputFile struct {
	Name string `json:"name"`
	Kind string `json:"kind"` // "image" or "video"
	URL  string `json:"url"`
}

// swapJobJSON is the wire form of a SwapJob.
type swapJobJSON struct {
	ID          string         `json:"id"`
	Mode        string         `json:"mode"`
	Enhance     bool           `json:"enhance"`
	Targets     []string       `json:"targets"`
	Status      JobStatus      `json:"status"`
	Phase       string         `json:"phase,omitempty"`
	Current     int            `json:"current"`
	Total       int            `json:"total"`
	Progress    int            `json:"progress"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Result      *SwapJobResult `json:"result,omitempty"`
}

// MarshalJSON snapshots the job under its lock.
func (j *SwapJob) MarshalJSON() ([]byte, error) {
	j.mu.RLock()
	v := swapJobJSON{
		ID:          j.ID,
		Mode:        j.Mode.String(),
		Enhance:     j.Enhance,
		Targets:     j.Targets,
		Status:      j.Status,
		Phase:       j.Phase,
		Current:     j.Current,
		Total:       j.Total,
		Progress:    j.Progress,
		Error:       j.Error,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
	}
	j.mu.RUnlock()
	return json.Marshal(v)
}

// GetStatus returns the current job status (implements SSEJob).
func (j *SwapJob) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Cancel cancels the swap job. Terminal jobs are left untouched.
func (j *SwapJob) Cancel() bool {
	j.mu.Lock()
	if isJobTerminal(j.Status) {
		j.mu.Unlock()
		return false
	}
	j.Status = JobStatusCancelled
	now := time.Now()
	j.CompletedAt = &now
	j.mu.Unlock()

	j.EventBroadcaster.Cancel()
	return true
}

// setProgress records orchestrator progress.
func (j *SwapJob) setProgress(info swap.ProgressInfo) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Phase = info.Phase
	j.Current = info.Current
	j.Total = info.Total
	if info.Total > 0 {
		j.Progress = int(float64(info.Current) / float64(info.Total) * 100)
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// setCancel installs the function that aborts the job's context.
func (b *EventBroadcaster) setCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancel = cancel
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs and bounds how many run at once.
type JobManager struct {
	jobs      map[string]*SwapJob
	mu        sync.RWMutex
	sem       *semaphore.Weighted
	retention time.Duration
}

// NewJobManager creates a job manager running at most maxConcurrent jobs.
func NewJobManager(maxConcurrent int) *JobManager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &JobManager{
		jobs:      make(map[string]*SwapJob),
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		retention: constants.JobRetention,
	}
}

// CreateJob creates a new pending swap job and forgets finished jobs past
// their retention.
func (m *JobManager) CreateJob(id string, mode swap.Mode, enhance bool, targets []string) *SwapJob {
	job := &SwapJob{
		ID:        id,
		Mode:      mode,
		Enhance:   enhance,
		Targets:   targets,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		Total:     len(targets),
	}

	m.mu.Lock()
	m.pruneLocked(time.Now())
	m.jobs[id] = job
	m.mu.Unlock()

	return job
}

func (m *JobManager) pruneLocked(now time.Time) {
	for id, job := range m.jobs {
		job.mu.RLock()
		expired := job.CompletedAt != nil && now.Sub(*job.CompletedAt) > m.retention
		job.mu.RUnlock()
		if expired {
			delete(m.jobs, id)
		}
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *SwapJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// DeleteJob removes a job.
func (m *JobManager) DeleteJob(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
}

// ListJobs returns all jobs.
func (m *JobManager) ListJobs() []*SwapJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]*SwapJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// acquire blocks until a job slot is free or ctx is done.
func (m *JobManager) acquire(ctx context.Context) error {
	return m.sem.Acquire(ctx, 1)
}

func (m *JobManager) release() {
	m.sem.Release(1)
}
