package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/biy/internal/shared"
)

// JobState is the lifecycle state of a submission.
type JobState int

const (
	JobIdle JobState = iota
	JobSubmitting
	JobInProgress
	JobComplete
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobIdle:
		return "idle"
	case JobSubmitting:
		return "submitting"
	case JobInProgress:
		return "in-progress"
	case JobComplete:
		return "complete"
	case JobFailed:
		return "failed"
	default:
		return ""
	}
}

// ParseJobState is the inverse of [JobState.String].
func ParseJobState(s string) (JobState, error) {
	for _, st := range []JobState{JobIdle, JobSubmitting, JobInProgress, JobComplete, JobFailed} {
		if st.String() == s {
			return st, nil
		}
	}
	return JobIdle, fmt.Errorf("%w: unknown job state %q", shared.ErrInvalidInput, s)
}

// Terminal reports whether the state ends a job.
func (s JobState) Terminal() bool {
	return s == JobComplete || s == JobFailed
}

// InputSource records which input affordance produced a payload.
type InputSource string

const (
	SourcePaste InputSource = "paste"
	SourceFile  InputSource = "file"
)

// Job is the history record of one submission-to-result cycle.
type Job struct {
	id            string
	sequence      int
	sessionID     string
	source        InputSource
	filename      string
	sizeBytes     int
	state         JobState
	statusMessage string
	resultLength  int
	errorMessage  string
	submittedAt   time.Time
	finishedAt    *time.Time
	createdAt     time.Time
	updatedAt     time.Time
}

var _ Model = (*Job)(nil)

// NewJob creates a job record in the submitting state.
func NewJob(sessionID string, source InputSource, filename string, sizeBytes int) *Job {
	now := time.Now()
	return &Job{
		sessionID:   sessionID,
		source:      source,
		filename:    filename,
		sizeBytes:   sizeBytes,
		state:       JobSubmitting,
		submittedAt: now,
		createdAt:   now,
		updatedAt:   now,
	}
}

// RestoreJob rebuilds a job from stored columns.
func RestoreJob(
	id string, sequence int, sessionID string, source InputSource, filename string, sizeBytes int,
	state JobState, statusMessage string, resultLength int, errorMessage string,
	submittedAt time.Time, finishedAt *time.Time, createdAt, updatedAt time.Time,
) *Job {
	return &Job{
		id:            id,
		sequence:      sequence,
		sessionID:     sessionID,
		source:        source,
		filename:      filename,
		sizeBytes:     sizeBytes,
		state:         state,
		statusMessage: statusMessage,
		resultLength:  resultLength,
		errorMessage:  errorMessage,
		submittedAt:   submittedAt,
		finishedAt:    finishedAt,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

func (j *Job) ID() string             { return j.id }
func (j *Job) Sequence() int          { return j.sequence }
func (j *Job) SessionID() string      { return j.sessionID }
func (j *Job) Source() InputSource    { return j.source }
func (j *Job) Filename() string       { return j.filename }
func (j *Job) SizeBytes() int         { return j.sizeBytes }
func (j *Job) State() JobState        { return j.state }
func (j *Job) StatusMessage() string  { return j.statusMessage }
func (j *Job) ResultLength() int      { return j.resultLength }
func (j *Job) ErrorMessage() string   { return j.errorMessage }
func (j *Job) SubmittedAt() time.Time { return j.submittedAt }
func (j *Job) FinishedAt() *time.Time { return j.finishedAt }
func (j *Job) CreatedAt() time.Time   { return j.createdAt }
func (j *Job) UpdatedAt() time.Time   { return j.updatedAt }

func (j *Job) SetID(id string)           { j.id = id }
func (j *Job) SetSequence(seq int)       { j.sequence = seq }
func (j *Job) SetUpdatedAt(t time.Time)  { j.updatedAt = t }
func (j *Job) SetStatusMessage(s string) { j.statusMessage = s }

// Finish moves the job into a terminal state and stamps its finish time.
func (j *Job) Finish(state JobState, resultLength int, err error) {
	now := time.Now()
	j.state = state
	j.resultLength = resultLength
	j.finishedAt = &now
	j.updatedAt = now
	if err != nil {
		j.errorMessage = err.Error()
	}
}

// Duration is the time from submission to finish, or zero while unfinished.
func (j *Job) Duration() time.Duration {
	if j.finishedAt == nil {
		return 0
	}
	return j.finishedAt.Sub(j.submittedAt)
}

// Validate checks required fields.
func (j *Job) Validate() error {
	if j.sessionID == "" {
		return fmt.Errorf("%w: session id is required", shared.ErrInvalidInput)
	}
	if j.source != SourcePaste && j.source != SourceFile {
		return fmt.Errorf("%w: unknown source %q", shared.ErrInvalidInput, j.source)
	}
	if j.filename == "" {
		return fmt.Errorf("%w: filename is required", shared.ErrInvalidInput)
	}
	if j.sizeBytes < 0 {
		return fmt.Errorf("%w: size must not be negative", shared.ErrInvalidInput)
	}
	return nil
}

// JobView is the JSON projection of a [Job] used by CLI output.
type JobView struct {
	ID           string     `json:"id"`
	Sequence     int        `json:"sequence"`
	SessionID    string     `json:"session_id"`
	Source       string     `json:"source"`
	Filename     string     `json:"filename"`
	SizeBytes    int        `json:"size_bytes"`
	State        string     `json:"state"`
	Status       string     `json:"status,omitempty"`
	ResultLength int        `json:"result_length"`
	Error        string     `json:"error,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// View returns the JSON projection of the job.
func (j *Job) View() JobView {
	return JobView{
		ID:           j.id,
		Sequence:     j.sequence,
		SessionID:    j.sessionID,
		Source:       string(j.source),
		Filename:     j.filename,
		SizeBytes:    j.sizeBytes,
		State:        j.state.String(),
		Status:       j.statusMessage,
		ResultLength: j.resultLength,
		Error:        j.errorMessage,
		SubmittedAt:  j.submittedAt,
		FinishedAt:   j.finishedAt,
	}
}
