// package tasks implements the job submission state machine.
//
// The core abstraction is Submitter, which pairs a one-shot upload with push channel events for a single session.
package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/services"
	"github.com/desertthunder/biy/internal/shared"
)

// Presenter displays a completed result.
type Presenter interface {
	Present(text string)
}

// Recorder persists job lifecycle transitions. Errors are logged and ignored.
type Recorder interface {
	JobStarted(sessionID string, source models.InputSource, filename string, size int) error
	JobFinished(state models.JobState, status string, resultLength int, cause error) error
}

// Option configures a [Submitter].
type Option func(*Submitter)

// WithPresenter sets the result presenter.
func WithPresenter(p Presenter) Option {
	return func(s *Submitter) { s.presenter = p }
}

// WithRecorder enables job history.
func WithRecorder(r Recorder) Option {
	return func(s *Submitter) { s.recorder = r }
}

// WithObserver registers the snapshot callback.
func WithObserver(o Observer) Option {
	return func(s *Submitter) { s.observer = o }
}

// WithLogger sets the submitter logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

// Submitter coordinates one job at a time for a session.
//
// The acknowledgement of an upload is never the result. The result arrives as a complete event, which the service
// may push before it acknowledges the upload; a later acknowledgement does not move the job backwards.
type Submitter struct {
	sessionID string
	analyzer  services.Analyzer
	presenter Presenter
	recorder  Recorder
	observer  Observer
	logger    *log.Logger

	mu        sync.Mutex
	state     State
	status    string
	connected bool
	closed    bool
	inFlight  bool
	gen       uint64
	lastErr   error

	notifyMu sync.Mutex
}

// NewSubmitter creates an idle submitter for the session.
func NewSubmitter(sessionID string, analyzer services.Analyzer, opts ...Option) *Submitter {
	s := &Submitter{
		sessionID: sessionID,
		analyzer:  analyzer,
		logger:    log.Default(),
		state:     Idle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkOpen records that the push channel is open. Submissions are refused until it is called.
//
// Closure is terminal: once [Submitter.HandleClose] has run, MarkOpen has no effect.
func (s *Submitter) MarkOpen() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.connected = true
	s.mu.Unlock()
	s.notify()
}

// Submit uploads a payload and waits for the acknowledgement.
//
// When the channel is not open or a job is already in flight, Submit returns an error wrapping
// [shared.ErrSubmitDisabled] and changes nothing. Otherwise the returned error is the upload's outcome.
func (s *Submitter) Submit(ctx context.Context, payload models.Payload) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return fmt.Errorf("%w: push channel is not open", shared.ErrSubmitDisabled)
	}
	if s.inFlight {
		s.mu.Unlock()
		return fmt.Errorf("%w: a job is already in flight", shared.ErrSubmitDisabled)
	}

	s.gen++
	gen := s.gen
	s.state = Submitting
	s.status = StatusSubmitting
	s.inFlight = true
	s.lastErr = nil
	s.record(func(r Recorder) error {
		return r.JobStarted(s.sessionID, payload.Source, payload.Origin, payload.Size())
	})
	s.mu.Unlock()

	s.logger.Info("submitting", "service", s.analyzer.Name(), "generation", gen, "source", payload.Source, "bytes", payload.Size())
	s.notify()

	ack, err := s.analyzer.Analyze(ctx, s.sessionID, payload)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("ignoring acknowledgement from superseded job", "generation", gen)
		return err
	}

	if err != nil {
		if !s.inFlight {
			s.mu.Unlock()
			s.logger.Warn("upload failed after job finished", "error", err)
			return err
		}
		s.state = Failed
		s.status = StatusFailed
		s.inFlight = false
		s.lastErr = err
		s.record(func(r Recorder) error { return r.JobFinished(Failed, StatusFailed, 0, err) })
		s.mu.Unlock()

		s.logger.Error("submission failed", "error", err)
		s.notify()
		return err
	}

	if s.state == Submitting {
		s.state = InProgress
	}
	s.mu.Unlock()

	s.logger.Debug("submission acknowledged", "generation", gen, "result_bytes", len(ack.Result))
	s.notify()
	return nil
}

// HandleEvent applies one push event.
//
// Progress events update the status and move a submitting job to in-progress. A complete event finishes the job and
// presents its code even when no job is in flight.
func (s *Submitter) HandleEvent(event models.Event) {
	switch event.Type {
	case models.EventProgress:
		s.mu.Lock()
		s.status = event.Message
		if s.state == Submitting {
			s.state = InProgress
		}
		s.mu.Unlock()

	case models.EventComplete:
		s.mu.Lock()
		wasInFlight := s.inFlight
		s.state = Complete
		s.inFlight = false
		s.lastErr = nil
		if wasInFlight {
			status := s.status
			s.record(func(r Recorder) error { return r.JobFinished(Complete, status, len(event.Code), nil) })
		}
		s.mu.Unlock()

		if !wasInFlight {
			s.logger.Debug("presenting completion outside a job")
		}
		if s.presenter != nil {
			s.presenter.Present(event.Code)
		}

	default:
		return
	}

	s.notify()
}

// HandleClose records the channel closure and fails any in-flight job.
func (s *Submitter) HandleClose(cause error) {
	s.mu.Lock()
	s.connected = false
	s.closed = true
	if s.inFlight {
		err := fmt.Errorf("%w: job interrupted", shared.ErrChannelClosed)
		if cause != nil {
			err = fmt.Errorf("%w: %w", shared.ErrChannelClosed, cause)
		}
		s.state = Failed
		s.status = StatusLost
		s.inFlight = false
		s.lastErr = err
		s.record(func(r Recorder) error { return r.JobFinished(Failed, StatusLost, 0, err) })
	}
	s.mu.Unlock()

	s.notify()
}

// Snapshot returns the current state.
func (s *Submitter) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Submitter) snapshotLocked() Snapshot {
	return Snapshot{
		State:      s.state,
		Status:     s.status,
		InFlight:   s.inFlight,
		Connected:  s.connected,
		Generation: s.gen,
		Err:        s.lastErr,
	}
}

// record calls the recorder, if any, while s.mu is held so start and finish stay ordered.
func (s *Submitter) record(fn func(Recorder) error) {
	if s.recorder == nil {
		return
	}
	if err := fn(s.recorder); err != nil {
		s.logger.Warn("failed to record job", "error", err)
	}
}

// notify sends the latest snapshot to the observer. Notifications are serialized so observers never see state go
// backwards.
func (s *Submitter) notify() {
	if s.observer == nil {
		return
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.observer(s.Snapshot())
}
