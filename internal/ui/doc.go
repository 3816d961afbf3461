// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [EditorView] : Paste or type code into the editor, with a line gutter, and submit it
//  2. [PickerView] : Pick a .py file, which is loaded into the editor and submitted
//  3. [HistoryView] : Browse this session's jobs
//
// The output pane sits beneath the editor and shows the typewriter reveal of the latest result. A status line with a
// spinner tracks the job while it is in flight.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Submitter snapshots and typewriter frames arrive from other goroutines through a [Bridge], which forwards them to
// the running program with [tea.Program.Send].
//
// Key bindings are listed by [help.Model]; ctrl+s submits, ctrl+o opens the picker and ctrl+r shows history.
package ui
