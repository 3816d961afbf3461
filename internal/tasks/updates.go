package tasks

import (
	"github.com/desertthunder/biy/internal/models"
)

// State is the lifecycle state of the session's job.
type State = models.JobState

const (
	Idle       = models.JobIdle
	Submitting = models.JobSubmitting
	InProgress = models.JobInProgress
	Complete   = models.JobComplete
	Failed     = models.JobFailed
)

// Status lines shown by the front ends. Progress messages from the service replace them verbatim.
const (
	StatusSubmitting   = "Submitting code..."
	StatusFailed       = "Error processing code"
	StatusLost         = "Connection lost"
	StatusNotConnected = "Not connected"
)

// Snapshot is a point-in-time view of the submitter.
//
// Sent to the [Observer] after every transition for display by the CLI or UI layer.
type Snapshot struct {
	State      State  // Job state
	Status     string // Latest status line
	InFlight   bool   // A job is Submitting or InProgress
	Connected  bool   // The push channel is open
	Generation uint64 // Number of accepted submissions so far
	Err        error  // Cause of the last failure, cleared on the next submission
}

// CanSubmit reports whether a submission would be accepted.
func (s Snapshot) CanSubmit() bool {
	return s.Connected && !s.InFlight
}

// Observer receives snapshots. It is called from the goroutine that caused the transition.
type Observer func(Snapshot)
