package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/biy/internal/input"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/shared"
	"github.com/desertthunder/biy/internal/tasks"
	"github.com/desertthunder/biy/internal/typewriter"
)

type fakeSession struct {
	mu        sync.Mutex
	startErr  error
	submitErr error
	snapshot  tasks.Snapshot
	submitted []models.Payload
	jobs      []*models.Job
}

func (f *fakeSession) Start(ctx context.Context) error { return f.startErr }

func (f *fakeSession) Submit(ctx context.Context, payload models.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, payload)
	return f.submitErr
}

func (f *fakeSession) History() ([]*models.Job, error) { return f.jobs, nil }
func (f *fakeSession) Snapshot() tasks.Snapshot       { return f.snapshot }

func (f *fakeSession) payloads() []models.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Payload(nil), f.submitted...)
}

func connectedModel(t *testing.T, sess *fakeSession) *Model {
	t.Helper()
	sess.snapshot = tasks.Snapshot{State: tasks.Idle, Connected: true}

	m := NewModel(context.Background(), sess, input.MinLines, t.TempDir())
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.Update(m.connect()())
	return m
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func TestModel(t *testing.T) {
	t.Run("connect failure is shown", func(t *testing.T) {
		sess := &fakeSession{startErr: shared.ErrTransportUnavailable}
		m := NewModel(context.Background(), sess, input.MinLines, "")
		m.Update(m.connect()())

		if !errors.Is(m.connErr, shared.ErrTransportUnavailable) {
			t.Fatalf("expected connection error, got %v", m.connErr)
		}
		if !strings.Contains(m.View(), tasks.StatusNotConnected) {
			t.Error("expected status line to report the missing connection")
		}
	})

	t.Run("submit sends editor text", func(t *testing.T) {
		sess := &fakeSession{}
		m := connectedModel(t, sess)
		typeText(m, "print(1)")

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
		if cmd == nil {
			t.Fatal("expected a submit command")
		}
		m.Update(cmd())

		got := sess.payloads()
		if len(got) != 1 {
			t.Fatalf("expected 1 submission, got %d", len(got))
		}
		if got[0].Text != "print(1)" || got[0].Source != models.SourcePaste {
			t.Errorf("unexpected payload %+v", got[0])
		}
		if got[0].Filename != models.UploadFilename {
			t.Errorf("expected filename %q, got %q", models.UploadFilename, got[0].Filename)
		}
	})

	t.Run("submit is disabled while a job is in flight", func(t *testing.T) {
		sess := &fakeSession{}
		m := connectedModel(t, sess)
		m.Update(snapshotMsg(tasks.Snapshot{State: tasks.InProgress, Connected: true, InFlight: true, Status: "Parsing"}))

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
		if cmd != nil {
			t.Error("expected no submit command while in flight")
		}
		if m.notice == "" {
			t.Error("expected a notice explaining why submit was refused")
		}
		if !strings.Contains(m.View(), "Parsing") {
			t.Error("expected status line to show the progress message")
		}
	})

	t.Run("submit error becomes a notice", func(t *testing.T) {
		sess := &fakeSession{submitErr: shared.ErrSubmissionRejected}
		m := connectedModel(t, sess)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
		m.Update(cmd())

		if !strings.Contains(m.notice, shared.ErrSubmissionRejected.Error()) {
			t.Errorf("expected rejection notice, got %q", m.notice)
		}
	})

	t.Run("frames fill the output pane", func(t *testing.T) {
		m := connectedModel(t, &fakeSession{})

		m.Update(frameMsg(typewriter.Frame{Text: "import o"}))
		m.Update(frameMsg(typewriter.Frame{Text: "import os", Done: true}))

		if m.display != "import os" {
			t.Errorf("expected display %q, got %q", "import os", m.display)
		}
		if !strings.Contains(m.View(), "import os") {
			t.Error("expected output pane to contain the result")
		}
	})

	t.Run("loaded file replaces editor text and submits", func(t *testing.T) {
		sess := &fakeSession{}
		m := connectedModel(t, sess)
		m.view = PickerView

		payload := models.Payload{Text: "x = 1\n", Source: models.SourceFile, Origin: "x.py", Filename: models.UploadFilename}
		_, cmd := m.Update(fileLoadedMsg(payload, nil))
		if m.view != EditorView {
			t.Errorf("expected editor view, got %v", m.view)
		}
		if m.editor.Value() != "x = 1\n" {
			t.Errorf("expected editor to hold file text, got %q", m.editor.Value())
		}
		if cmd == nil {
			t.Fatal("expected a submit command")
		}
		m.Update(cmd())

		got := sess.payloads()
		if len(got) != 1 || got[0].Source != models.SourceFile || got[0].Origin != "x.py" {
			t.Errorf("unexpected submissions %+v", got)
		}
	})

	t.Run("rejected file is reported", func(t *testing.T) {
		sess := &fakeSession{}
		m := connectedModel(t, sess)

		_, cmd := m.Update(fileLoadedMsg(models.Payload{}, shared.ErrRejectedFile))
		if cmd != nil {
			t.Error("expected no submit command")
		}
		if len(sess.payloads()) != 0 {
			t.Error("expected nothing submitted")
		}
		if !strings.Contains(m.notice, shared.ErrRejectedFile.Error()) {
			t.Errorf("expected rejection notice, got %q", m.notice)
		}
	})

	t.Run("history view lists jobs", func(t *testing.T) {
		job := models.NewJob("s", models.SourcePaste, models.UploadFilename, 42)
		sess := &fakeSession{jobs: []*models.Job{job}}
		m := connectedModel(t, sess)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
		if m.view != HistoryView {
			t.Fatalf("expected history view, got %v", m.view)
		}
		m.Update(cmd())

		if n := len(m.history.Items()); n != 1 {
			t.Errorf("expected 1 history item, got %d", n)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.view != EditorView {
			t.Errorf("expected esc to return to the editor, got %v", m.view)
		}
	})

	t.Run("gutter has at least the minimum lines", func(t *testing.T) {
		m := connectedModel(t, &fakeSession{})
		view := m.renderEditor()
		if !strings.Contains(view, "15") {
			t.Error("expected gutter to number 15 lines for empty input")
		}
	})

	t.Run("unset gutter floor falls back to default", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeSession{}, 0, "")
		m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

		if m.minLines != input.MinLines {
			t.Errorf("expected floor %d, got %d", input.MinLines, m.minLines)
		}
		if !strings.Contains(m.renderEditor(), "15") {
			t.Error("expected gutter to number 15 lines")
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := connectedModel(t, &fakeSession{})
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestBridge(t *testing.T) {
	b := NewBridge()
	b.Observe(tasks.Snapshot{})
	b.Frame(typewriter.Frame{Text: "x"})
}
