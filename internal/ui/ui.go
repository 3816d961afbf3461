package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/biy/internal/input"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/shared"
	"github.com/desertthunder/biy/internal/tasks"
	"github.com/desertthunder/biy/internal/typewriter"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	EditorView ViewState = iota
	PickerView
	HistoryView
)

// Session is the part of a client session the TUI drives.
type Session interface {
	Start(ctx context.Context) error
	Submit(ctx context.Context, payload models.Payload) error
	History() ([]*models.Job, error)
	Snapshot() tasks.Snapshot
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	session  Session
	view     ViewState
	editor   textarea.Model
	picker   filepicker.Model
	spinner  spinner.Model
	output   viewport.Model
	history  list.Model
	help     help.Model
	keys     keyMap
	minLines int
	snapshot tasks.Snapshot
	display  string
	connErr  error
	notice   string
	width    int
	height   int
}

// NewModel creates a new TUI model. The file picker starts in dir. A non-positive minLines uses [input.MinLines].
func NewModel(ctx context.Context, session Session, minLines int, dir string) *Model {
	if minLines <= 0 {
		minLines = input.MinLines
	}

	editor := textarea.New()
	editor.Placeholder = "Paste Python code here, or press ctrl+o to open a .py file"
	editor.ShowLineNumbers = false
	editor.CharLimit = 0
	editor.MaxHeight = 0
	editor.Focus()

	picker := filepicker.New()
	picker.AllowedTypes = []string{input.Extension}
	if dir != "" {
		picker.CurrentDirectory = dir
	}

	history := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	history.Title = "Session history"

	return &Model{
		ctx:      ctx,
		session:  session,
		view:     EditorView,
		editor:   editor,
		picker:   picker,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		output:   viewport.New(0, 0),
		history:  history,
		help:     help.New(),
		keys:     newKeyMap(),
		minLines: minLines,
		snapshot: tasks.Snapshot{Status: tasks.StatusNotConnected},
	}
}

// Init opens the session's push channel and starts the cursor, spinner and picker.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.connect(), textarea.Blink, m.spinner.Tick, m.picker.Init())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.history.SetSize(msg.Width-4, msg.Height-6)
		m.resize()

		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		switch m.view {
		case EditorView:
			return m.handleEditorKeys(msg)
		case PickerView:
			return m.handlePickerKeys(msg)
		case HistoryView:
			return m.handleHistoryKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgConnected:
		err, _ := msg.data.(error)
		m.connErr = err
		m.snapshot = m.session.Snapshot()
		return m, nil

	case MsgSnapshot:
		m.snapshot = msg.data.(tasks.Snapshot)
		return m, nil

	case MsgFrame:
		frame := msg.data.(typewriter.Frame)
		m.display = frame.Text
		m.output.SetContent(m.display)
		if !frame.Done {
			m.output.GotoBottom()
		}
		return m, nil

	case MsgSubmitted:
		if err, _ := msg.data.(error); err != nil {
			m.notice = submitNotice(err)
		}
		return m, nil

	case MsgFileLoaded:
		data := msg.data.(struct {
			payload models.Payload
			err     error
		})
		m.view = EditorView
		if data.err != nil {
			m.notice = data.err.Error()
			return m, nil
		}
		m.editor.SetValue(data.payload.Text)
		m.resize()
		return m, m.submit(data.payload)

	case MsgHistoryFetched:
		data := msg.data.(struct {
			jobs []*models.Job
			err  error
		})
		if data.err != nil {
			m.notice = fmt.Sprintf("failed to load history: %v", data.err)
			return m, nil
		}
		return m, m.history.SetItems(jobItems(data.jobs))
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case EditorView:
		body = m.renderEditor()
	case PickerView:
		body = m.renderPicker()
	case HistoryView:
		body = m.renderHistory()
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatus(), m.renderHelp())
}

func (m *Model) handleEditorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.submit):
		return m, m.submit(input.FromText(m.editor.Value()))
	case key.Matches(msg, m.keys.open):
		m.view = PickerView
		m.notice = ""
		return m, nil
	case key.Matches(msg, m.keys.history):
		m.view = HistoryView
		return m, m.fetchHistory()
	case key.Matches(msg, m.keys.clear):
		m.editor.Reset()
		m.resize()
		return m, nil
	case key.Matches(msg, m.keys.scrollUp, m.keys.scrollDn):
		var cmd tea.Cmd
		m.output, cmd = m.output.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	m.resize()
	return m, cmd
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.back) {
		m.view = EditorView
		return m, nil
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)

	if ok, path := m.picker.DidSelectFile(msg); ok {
		return m, tea.Batch(cmd, m.loadFile(path))
	}
	if ok, path := m.picker.DidSelectDisabledFile(msg); ok {
		m.notice = fmt.Sprintf("%v: %s", shared.ErrRejectedFile, path)
	}
	return m, cmd
}

func (m *Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.back) && m.history.FilterState() != list.Filtering {
		m.view = EditorView
		return m, nil
	}

	var cmd tea.Cmd
	m.history, cmd = m.history.Update(msg)
	return m, cmd
}

// updateComponents forwards internal component messages (cursor blink, directory reads).
func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var editorCmd, pickerCmd tea.Cmd
	m.editor, editorCmd = m.editor.Update(msg)
	m.picker, pickerCmd = m.picker.Update(msg)
	return m, tea.Batch(editorCmd, pickerCmd)
}

// submit returns a command that uploads payload, or nil when the session would refuse it.
func (m *Model) submit(payload models.Payload) tea.Cmd {
	if !m.snapshot.CanSubmit() {
		m.notice = submitNotice(shared.ErrSubmitDisabled)
		return nil
	}

	m.notice = ""
	return func() tea.Msg {
		return submittedMsg(m.session.Submit(m.ctx, payload))
	}
}

func (m *Model) connect() tea.Cmd {
	return func() tea.Msg {
		return connectedMsg(m.session.Start(m.ctx))
	}
}

func (m *Model) loadFile(path string) tea.Cmd {
	return func() tea.Msg {
		payload, err := input.FromFile(path)
		return fileLoadedMsg(payload, err)
	}
}

func (m *Model) fetchHistory() tea.Cmd {
	return func() tea.Msg {
		jobs, err := m.session.History()
		return historyFetchedMsg(jobs, err)
	}
}

// resize fits the editor to its gutter and gives the output pane the remaining height.
func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}

	maxEditor := max(m.height/2, 1)
	rows := min(len(input.Gutter(m.editor.Value(), m.minLines)), maxEditor)

	m.editor.SetWidth(m.width - m.gutterWidth() - 2)
	m.editor.SetHeight(rows)

	m.output.Width = max(m.width-2, 1)
	m.output.Height = max(m.height-rows-6, 1)
	m.output.SetContent(m.display)
}

func (m *Model) gutterWidth() int {
	lines := input.Gutter(m.editor.Value(), m.minLines)
	return len(fmt.Sprint(lines[len(lines)-1])) + 1
}

func (m *Model) renderEditor() string {
	lines := input.Gutter(m.editor.Value(), m.minLines)
	if h := m.editor.Height(); h > 0 && len(lines) > h {
		lines = lines[:h]
	}

	numbers := make([]string, len(lines))
	for i, n := range lines {
		numbers[i] = fmt.Sprint(n)
	}
	gutter := styles.gutter.Width(m.gutterWidth()).Render(strings.Join(numbers, "\n"))

	editor := lipgloss.JoinHorizontal(lipgloss.Top, gutter, m.editor.View())
	output := styles.pane.Render(m.output.View())
	return lipgloss.JoinVertical(lipgloss.Left, editor, output)
}

func (m *Model) renderPicker() string {
	title := styles.title.Render("Open a Python file")
	return fmt.Sprintf("%s\n%s", title, m.picker.View())
}

func (m *Model) renderHistory() string {
	return m.history.View()
}

func (m *Model) renderStatus() string {
	if m.connErr != nil {
		return styles.err.Render(fmt.Sprintf("%s: %v", tasks.StatusNotConnected, m.connErr))
	}

	s := m.snapshot
	status := s.Status
	if status == "" {
		status = s.State.String()
	}

	var line string
	switch {
	case s.InFlight:
		line = fmt.Sprintf("%s %s", m.spinner.View(), styles.warn.Render(status))
	case s.State == tasks.Failed:
		line = styles.err.Render(status)
		if s.Err != nil {
			line = fmt.Sprintf("%s %s", line, styles.help.Render(s.Err.Error()))
		}
	case s.State == tasks.Complete:
		line = styles.ok.Render(status)
	case !s.Connected:
		line = styles.err.Render(tasks.StatusNotConnected)
	default:
		line = styles.help.Render("Ready")
	}

	if m.notice != "" {
		line = fmt.Sprintf("%s  %s", line, styles.warn.Render(m.notice))
	}
	return line
}

func (m *Model) renderHelp() string {
	var bindings []key.Binding
	switch m.view {
	case EditorView:
		bindings = []key.Binding{m.keys.submit, m.keys.open, m.keys.history, m.keys.clear, m.keys.quit}
	case PickerView, HistoryView:
		bindings = []key.Binding{m.keys.back, m.keys.quit}
	}
	return m.help.ShortHelpView(bindings)
}

func submitNotice(err error) string {
	if errors.Is(err, shared.ErrSubmitDisabled) {
		return "submit is disabled until the channel is open and no job is running"
	}
	return err.Error()
}
