package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/biy/internal/session"
	"github.com/desertthunder/biy/internal/shared"
	"github.com/desertthunder/biy/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive editor.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	bridge := ui.NewBridge()
	sess, err := session.New(r.config, session.Options{
		Logger:     r.logger,
		HTTPClient: r.httpClient,
		Observer:   bridge.Observe,
	})
	if err != nil {
		return err
	}
	defer sess.Close()
	sess.Renderer().OnFrame(bridge.Frame)

	dir, err := os.Getwd()
	if err != nil {
		dir = ""
	}

	model := ui.NewModel(ctx, sess, r.config.Editor.MinLines, dir)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
