package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/tasks"
	"github.com/desertthunder/biy/internal/typewriter"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgConnected MsgKind = iota
	MsgSnapshot
	MsgFrame
	MsgSubmitted
	MsgFileLoaded
	MsgHistoryFetched
)

// connectedMsg is the constructor for [MsgConnected]
func connectedMsg(err error) Msg {
	return Msg{kind: MsgConnected, data: err}
}

// snapshotMsg is the constructor for [MsgSnapshot]
func snapshotMsg(s tasks.Snapshot) Msg {
	return Msg{kind: MsgSnapshot, data: s}
}

// frameMsg is the constructor for [MsgFrame]
func frameMsg(f typewriter.Frame) Msg {
	return Msg{kind: MsgFrame, data: f}
}

// submittedMsg is the constructor for [MsgSubmitted]
func submittedMsg(err error) Msg {
	return Msg{kind: MsgSubmitted, data: err}
}

// fileLoadedMsg is the constructor for [MsgFileLoaded]
func fileLoadedMsg(payload models.Payload, err error) Msg {
	return Msg{
		kind: MsgFileLoaded,
		data: struct {
			payload models.Payload
			err     error
		}{payload, err},
	}
}

// historyFetchedMsg is the constructor for [MsgHistoryFetched]
func historyFetchedMsg(jobs []*models.Job, err error) Msg {
	return Msg{
		kind: MsgHistoryFetched,
		data: struct {
			jobs []*models.Job
			err  error
		}{jobs, err},
	}
}

// Bridge forwards callbacks from session goroutines into a running program.
//
// Messages sent before [Bridge.Attach] are dropped; the model reads the initial snapshot itself.
type Bridge struct {
	mu sync.Mutex
	p  *tea.Program
}

// NewBridge creates an unattached bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach sets the program messages are sent to.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

// Observe is a [tasks.Observer].
func (b *Bridge) Observe(s tasks.Snapshot) {
	b.send(snapshotMsg(s))
}

// Frame is a typewriter frame callback.
func (b *Bridge) Frame(f typewriter.Frame) {
	b.send(frameMsg(f))
}

func (b *Bridge) send(msg Msg) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}
