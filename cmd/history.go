package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/biy/internal/formatter"
	"github.com/desertthunder/biy/internal/repositories"
	"github.com/desertthunder/biy/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists recorded jobs from a file-backed history database.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	path := r.config.History.Path
	if path == "" || path == ":memory:" {
		return fmt.Errorf("%w: history.path must name a file for history to outlive a session", shared.ErrInvalidConfig)
	}

	db, err := shared.OpenHistory(path)
	if err != nil {
		return err
	}
	defer db.Close()

	jobs, err := repositories.NewJobRepository(db).List(map[string]any{
		"session_id": cmd.String("session"),
		"state":      cmd.String("state"),
	})
	if err != nil {
		return err
	}
	r.logger.Debug("loaded history", "path", path, "jobs", len(jobs))

	if out := cmd.String("output"); out != "" {
		written, err := formatter.WriteExport(jobs, format, out)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported %d jobs to %s\n", len(jobs), written)
		return nil
	}

	data, err := formatter.Export(jobs, format)
	if err != nil {
		return err
	}
	return r.writePlain("%s", data)
}
