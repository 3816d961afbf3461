package repositories

import (
	"fmt"
	"sync"

	"github.com/desertthunder/biy/internal/models"
)

// JobRecorder implements tasks.Recorder using [JobRepository].
//
// A session has at most one job in flight, so the recorder tracks a single open record. Finish calls without an
// open record (a replayed completion, for instance) are ignored.
type JobRecorder struct {
	repo    *JobRepository
	mu      sync.Mutex
	current *models.Job
}

// NewJobRecorder creates a new JobRecorder with the given repository
func NewJobRecorder(repo *JobRepository) *JobRecorder {
	return &JobRecorder{repo: repo}
}

// JobStarted inserts a new record in the submitting state.
func (a *JobRecorder) JobStarted(sessionID string, source models.InputSource, filename string, size int) error {
	job := models.NewJob(sessionID, source, filename, size)
	if err := a.repo.Create(job); err != nil {
		return fmt.Errorf("failed to record job start: %w", err)
	}

	a.mu.Lock()
	a.current = job
	a.mu.Unlock()
	return nil
}

// JobFinished closes the open record with its terminal state.
func (a *JobRecorder) JobFinished(state models.JobState, status string, resultLength int, cause error) error {
	a.mu.Lock()
	job := a.current
	a.current = nil
	a.mu.Unlock()

	if job == nil {
		return nil
	}

	job.SetStatusMessage(status)
	job.Finish(state, resultLength, cause)
	if err := a.repo.Update(job); err != nil {
		return fmt.Errorf("failed to record job finish: %w", err)
	}
	return nil
}

// History lists the jobs recorded for a session, newest first.
func (a *JobRecorder) History(sessionID string) ([]*models.Job, error) {
	return a.repo.List(map[string]any{"session_id": sessionID})
}
