package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/kozaktomas/face-swap/internal/swap"
)

func TestJobManager_CreateGetDelete(t *testing.T) {
	jm := NewJobManager(2)
	job := jm.CreateJob("id-1", swap.ModeMultiVideo, true, []string{"a.mp4", "b.mp4"})

	if job.Status != JobStatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}
	if job.Total != 2 {
		t.Errorf("expected total 2, got %d", job.Total)
	}
	if jm.GetJob("id-1") != job {
		t.Error("expected GetJob to return the created job")
	}

	jm.DeleteJob("id-1")
	if jm.GetJob("id-1") != nil {
		t.Error("expected job to be deleted")
	}
}

func TestJobManager_PrunesExpiredJobs(t *testing.T) {
	jm := NewJobManager(1)
	jm.retention = time.Minute

	old := jm.CreateJob("old", swap.ModeImage, false, nil)
	finished := time.Now().Add(-2 * time.Minute)
	old.CompletedAt = &finished

	running := jm.CreateJob("running", swap.ModeImage, false, nil)
	jm.CreateJob("new", swap.ModeImage, false, nil)

	if jm.GetJob("old") != nil {
		t.Error("expected expired job to be pruned")
	}
	if jm.GetJob("running") != running {
		t.Error("expected unfinished job to be kept")
	}
}

func TestJobManager_BoundsConcurrency(t *testing.T) {
	jm := NewJobManager(1)

	if err := jm.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := jm.acquire(ctx); err == nil {
		t.Fatal("expected second acquire to block until the deadline")
	}

	jm.release()
	if err := jm.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	jm.release()
}

func TestNewJobManager_MinimumOneSlot(t *testing.T) {
	jm := NewJobManager(0)
	if err := jm.acquire(context.Background()); err != nil {
		t.Fatalf("expected one slot, got %v", err)
	}
	jm.release()
}

func TestSwapJob_Cancel(t *testing.T) {
	jm := NewJobManager(1)
	job := jm.CreateJob("id", swap.ModeImage, false, nil)

	cancelled := false
	job.setCancel(func() { cancelled = true })
	events := job.AddListener()
	defer job.RemoveListener(events)

	if !job.Cancel() {
		t.Fatal("expected cancel to succeed")
	}
	if !cancelled {
		t.Error("expected context cancel func to be called")
	}
	if job.GetStatus() != JobStatusCancelled {
		t.Errorf("expected cancelled status, got %s", job.GetStatus())
	}
	select {
	case ev := <-events:
		if ev.Type != "cancelled" {
			t.Errorf("expected cancelled event, got %s", ev.Type)
		}
	default:
		t.Error("expected a cancelled event")
	}

	if job.Cancel() {
		t.Error("expected second cancel to be rejected")
	}
}

func TestSwapJob_SetProgress(t *testing.T) {
	job := NewJobManager(1).CreateJob("id", swap.ModeMultiVideo, false, []string{"a", "b", "c", "d"})
	job.setProgress(swap.ProgressInfo{Phase: "swapping", Current: 1, Total: 4})

	if job.Progress != 25 {
		t.Errorf("expected progress 25, got %d", job.Progress)
	}
	if job.Phase != "swapping" {
		t.Errorf("expected phase swapping, got %s", job.Phase)
	}
}
