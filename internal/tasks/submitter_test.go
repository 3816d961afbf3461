package tasks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/biy/internal/input"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/shared"
	tu "github.com/desertthunder/biy/internal/testing"
)

// fakeAnalyzer blocks each upload until the test releases it.
type fakeAnalyzer struct {
	mu       sync.Mutex
	payloads []models.Payload
	releases []chan error
	started  chan int
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{started: make(chan int, 8)}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, sessionID string, p models.Payload) (*models.Ack, error) {
	release := make(chan error, 1)

	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.releases = append(f.releases, release)
	n := len(f.releases) - 1
	f.mu.Unlock()

	f.started <- n
	if err := <-release; err != nil {
		return nil, err
	}
	return &models.Ack{Result: "ack"}, nil
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

// finish releases the nth upload with err.
func (f *fakeAnalyzer) finish(n int, err error) {
	f.mu.Lock()
	release := f.releases[n]
	f.mu.Unlock()
	release <- err
}

func (f *fakeAnalyzer) waitStarted(t *testing.T) int {
	t.Helper()
	select {
	case n := <-f.started:
		return n
	case <-time.After(time.Second):
		t.Fatal("upload did not start")
		return -1
	}
}

func quiet() Option { return WithLogger(log.New(io.Discard)) }

// submitAsync runs Submit in the background and returns its result channel.
func submitAsync(s *Submitter, p models.Payload) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), p) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatal("submit did not return")
		return nil
	}
}

func TestSubmitter(t *testing.T) {
	t.Run("Submit Requires Open Channel", func(t *testing.T) {
		analyzer := newFakeAnalyzer()
		s := NewSubmitter("s", analyzer, quiet())

		err := s.Submit(context.Background(), input.FromText("x"))
		if !errors.Is(err, shared.ErrSubmitDisabled) {
			t.Fatalf("expected ErrSubmitDisabled, got %v", err)
		}
		if analyzer.Calls() != 0 {
			t.Error("expected no request")
		}
		if snap := s.Snapshot(); snap.State != Idle || snap.Status != "" || snap.Generation != 0 {
			t.Errorf("expected untouched state, got %+v", snap)
		}
	})

	t.Run("Single Job In Flight", func(t *testing.T) {
		analyzer := newFakeAnalyzer()
		s := NewSubmitter("s", analyzer, quiet())
		s.MarkOpen()

		done := submitAsync(s, input.FromText("a"))
		analyzer.waitStarted(t)

		if snap := s.Snapshot(); !snap.InFlight || snap.CanSubmit() {
			t.Fatal("expected job in flight")
		}
		if snap := s.Snapshot(); snap.State != Submitting || snap.Status != StatusSubmitting {
			t.Errorf("unexpected snapshot %+v", snap)
		}

		err := s.Submit(context.Background(), input.FromText("b"))
		if !errors.Is(err, shared.ErrSubmitDisabled) {
			t.Errorf("expected ErrSubmitDisabled, got %v", err)
		}
		if analyzer.Calls() != 1 {
			t.Errorf("expected one request, got %d", analyzer.Calls())
		}

		analyzer.finish(0, nil)
		if err := waitErr(t, done); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap := s.Snapshot(); snap.State != InProgress || !snap.InFlight {
			t.Errorf("expected in-progress after ack, got %+v", snap)
		}

		s.HandleEvent(models.CompleteEvent("done"))
		if !s.Snapshot().CanSubmit() {
			t.Error("expected submission re-enabled after completion")
		}
	})

	t.Run("Scenario A", func(t *testing.T) {
		analyzer := newFakeAnalyzer()
		presenter := &tu.RecordingPresenter{}
		s := NewSubmitter("s", analyzer, WithPresenter(presenter), quiet())
		s.MarkOpen()

		done := submitAsync(s, input.FromText("print(1)"))
		analyzer.waitStarted(t)

		s.HandleEvent(models.ProgressEvent("Analyzing..."))
		if snap := s.Snapshot(); snap.Status != "Analyzing..." || snap.State != InProgress {
			t.Errorf("unexpected snapshot %+v", snap)
		}

		s.HandleEvent(models.CompleteEvent("print(1)"))
		analyzer.finish(0, nil)
		if err := waitErr(t, done); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		snap := s.Snapshot()
		if snap.State != Complete || snap.InFlight {
			t.Errorf("late ack regressed state: %+v", snap)
		}
		if got := presenter.Presented(); len(got) != 1 || got[0] != "print(1)" {
			t.Errorf("unexpected presented results %q", got)
		}
	})

	t.Run("Scenario B", func(t *testing.T) {
		analyzer := newFakeAnalyzer()
		presenter := &tu.RecordingPresenter{}
		s := NewSubmitter("s", analyzer, WithPresenter(presenter), quiet())
		s.MarkOpen()

		done := submitAsync(s, input.FromText("x"))
		analyzer.waitStarted(t)
		analyzer.finish(0, nil)
		waitErr(t, done)

		s.HandleClose(errors.New("connection reset"))

		snap := s.Snapshot()
		if snap.State != Failed || snap.InFlight {
			t.Errorf("expected failed, got %+v", snap)
		}
		if snap.Status != StatusLost {
			t.Errorf("expected %q, got %q", StatusLost, snap.Status)
		}
		if !errors.Is(snap.Err, shared.ErrChannelClosed) {
			t.Errorf("expected ErrChannelClosed, got %v", snap.Err)
		}
		if len(presenter.Presented()) != 0 {
			t.Error("expected no presented result")
		}
		if s.Snapshot().CanSubmit() {
			t.Error("expected submission refused once the channel is closed")
		}
		if err := s.Submit(context.Background(), input.FromText("y")); !errors.Is(err, shared.ErrSubmitDisabled) {
			t.Errorf("expected ErrSubmitDisabled, got %v", err)
		}
	})

	t.Run("Close Without Job Only Records", func(t *testing.T) {
		s := NewSubmitter("s", newFakeAnalyzer(), quiet())
		s.MarkOpen()
		s.HandleClose(nil)

		snap := s.Snapshot()
		if snap.State != Idle || snap.Connected {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("Rejected Upload", func(t *testing.T) {
		analyzer := newFakeAnalyzer()
		s := NewSubmitter("s", analyzer, quiet())
		s.MarkOpen()

		done := submitAsync(s, input.FromText("x"))
		analyzer.waitStarted(t)
		analyzer.finish(0, shared.ErrSubmissionRejected)

		if err := waitErr(t, done); !errors.Is(err, shared.ErrSubmissionRejected) {
			t.Fatalf("expected ErrSubmissionRejected, got %v", err)
		}

		snap := s.Snapshot()
		if snap.State != Failed || snap.Status != StatusFailed {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if !s.Snapshot().CanSubmit() {
			t.Error("expected resubmission to be enabled")
		}
	})

	t.Run("Upload Failure After Complete Keeps Result", func(t *testing.T) {
		analyzer := newFakeAnalyzer()
		s := NewSubmitter("s", analyzer, quiet())
		s.MarkOpen()

		done := submitAsync(s, input.FromText("x"))
		analyzer.waitStarted(t)
		s.HandleEvent(models.CompleteEvent("ok"))
		analyzer.finish(0, shared.ErrAPIRequest)
		waitErr(t, done)

		if snap := s.Snapshot(); snap.State != Complete {
			t.Errorf("expected complete, got %+v", snap)
		}
	})

	t.Run("Stale Ack Is Ignored", func(t *testing.T) {
		analyzer := newFakeAnalyzer()
		s := NewSubmitter("s", analyzer, quiet())
		s.MarkOpen()

		first := submitAsync(s, input.FromText("one"))
		analyzer.waitStarted(t)
		s.HandleEvent(models.CompleteEvent("one"))

		second := submitAsync(s, input.FromText("two"))
		analyzer.waitStarted(t)

		analyzer.finish(0, shared.ErrAPIRequest)
		waitErr(t, first)

		snap := s.Snapshot()
		if snap.State != Submitting || !snap.InFlight || snap.Generation != 2 {
			t.Errorf("stale ack changed current job: %+v", snap)
		}

		analyzer.finish(1, nil)
		waitErr(t, second)
	})

	t.Run("Progress After Complete Updates Status Only", func(t *testing.T) {
		s := NewSubmitter("s", newFakeAnalyzer(), quiet())
		s.MarkOpen()
		s.HandleEvent(models.CompleteEvent("x"))
		s.HandleEvent(models.ProgressEvent("Analysis complete!"))

		snap := s.Snapshot()
		if snap.State != Complete || snap.Status != "Analysis complete!" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("Result Independence", func(t *testing.T) {
		presenter := &tu.RecordingPresenter{}
		s := NewSubmitter("s", newFakeAnalyzer(), WithPresenter(presenter), quiet())

		s.HandleEvent(models.CompleteEvent("first"))
		s.HandleEvent(models.CompleteEvent("first"))
		s.HandleEvent(models.CompleteEvent(""))

		got := presenter.Presented()
		if len(got) != 3 || got[0] != "first" || got[1] != "first" || got[2] != "" {
			t.Errorf("expected every completion presented, got %q", got)
		}
	})

	t.Run("Recorder", func(t *testing.T) {
		analyzer := newFakeAnalyzer()
		recorder := &tu.RecordingRecorder{Fail: errors.New("disk full")}
		s := NewSubmitter("s", analyzer, WithRecorder(recorder), quiet())
		s.MarkOpen()

		done := submitAsync(s, models.Payload{Text: "abc", Source: models.SourceFile, Origin: "a.py", Filename: "code.py"})
		analyzer.waitStarted(t)
		s.HandleEvent(models.ProgressEvent("Generating code with dependency results..."))
		s.HandleEvent(models.CompleteEvent("result"))
		analyzer.finish(0, nil)
		waitErr(t, done)

		s.HandleEvent(models.CompleteEvent("replayed"))

		calls := recorder.Calls()
		if len(calls) != 2 {
			t.Fatalf("expected start and finish, got %+v", calls)
		}
		if !calls[0].Started || calls[0].Source != models.SourceFile {
			t.Errorf("unexpected start %+v", calls[0])
		}
		if calls[1].State != Complete || calls[1].Length != len("result") {
			t.Errorf("unexpected finish %+v", calls[1])
		}
		if calls[1].Status != "Generating code with dependency results..." {
			t.Errorf("unexpected status %q", calls[1].Status)
		}
	})

	t.Run("Observer", func(t *testing.T) {
		var mu sync.Mutex
		var states []State
		s := NewSubmitter("s", newFakeAnalyzer(), quiet(), WithObserver(func(snap Snapshot) {
			mu.Lock()
			states = append(states, snap.State)
			mu.Unlock()
		}))

		s.MarkOpen()
		s.HandleEvent(models.ProgressEvent("x"))
		s.HandleEvent(models.CompleteEvent("y"))
		s.HandleEvent(models.Event{Type: "heartbeat"})

		mu.Lock()
		defer mu.Unlock()
		if len(states) != 3 || states[2] != Complete {
			t.Errorf("unexpected observed states %v", states)
		}
	})
}

func TestSnapshotCanSubmit(t *testing.T) {
	tt := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"connected idle", Snapshot{Connected: true}, true},
		{"connected in flight", Snapshot{Connected: true, InFlight: true}, false},
		{"disconnected", Snapshot{}, false},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.snap.CanSubmit(); got != tc.want {
				t.Errorf("CanSubmit() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSubmitterMarkOpenAfterClose(t *testing.T) {
	s := NewSubmitter("s", newFakeAnalyzer(), quiet())
	s.HandleClose(errors.New("refused"))
	s.MarkOpen()

	if s.Snapshot().CanSubmit() {
		t.Error("expected closure to be terminal")
	}
}

func TestSubmitterLogsService(t *testing.T) {
	var buf bytes.Buffer
	analyzer := newFakeAnalyzer()
	s := NewSubmitter("s", analyzer, WithLogger(log.New(&buf)))
	s.MarkOpen()

	done := submitAsync(s, input.FromText("a"))
	n := analyzer.waitStarted(t)
	analyzer.finish(n, nil)
	if err := waitErr(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), "service=fake") {
		t.Errorf("expected submitting line to name the service, got %q", buf.String())
	}
}
