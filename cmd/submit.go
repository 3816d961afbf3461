package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/desertthunder/biy/internal/input"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/session"
	"github.com/desertthunder/biy/internal/shared"
	"github.com/desertthunder/biy/internal/tasks"
	"github.com/desertthunder/biy/internal/typewriter"
	"github.com/urfave/cli/v3"
)

// SubmitResult is the --json output of a submit run.
type SubmitResult struct {
	Session string          `json:"session"`
	Job     *models.JobView `json:"job,omitempty"`
	State   string          `json:"state"`
	Status  string          `json:"status,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// Submit runs one job: open the channel, upload, wait for the result and reveal it on stdout.
//
// Status lines go to stderr. A failed job returns an error wrapping [shared.ErrJobFailed].
func (r *Runner) Submit(ctx context.Context, cmd *cli.Command) error {
	payload, err := r.readPayload(cmd)
	if err != nil {
		return err
	}

	asJSON := cmd.Bool("json")
	if timeout := cmd.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var twOpts []typewriter.Option
	if cmd.Bool("instant") || asJSON {
		twOpts = append(twOpts, typewriter.WithInstant())
	}

	watch := newJobWatch(r)
	sess, err := session.New(r.config, session.Options{
		Logger:     r.logger,
		HTTPClient: r.httpClient,
		Observer:   watch.observe,
		Typewriter: twOpts,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	reveal := newRevealWriter(r.output, !asJSON)
	sess.Renderer().OnFrame(reveal.frame)

	r.logger.Debug("starting session", "session", sess.ID())
	if err := sess.Start(ctx); err != nil {
		return err
	}

	if err := sess.Submit(ctx, payload); err != nil {
		if errors.Is(err, shared.ErrSubmitDisabled) {
			return fmt.Errorf("%w: %w", shared.ErrJobFailed, err)
		}
		r.logger.Debug("upload returned error", "error", err)
	}

	var snap tasks.Snapshot
	select {
	case snap = <-watch.terminal:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", shared.ErrJobFailed, ctx.Err())
	}

	if snap.State == tasks.Complete {
		select {
		case <-reveal.done:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", shared.ErrJobFailed, ctx.Err())
		}
	}

	if asJSON {
		if err := r.writeJSON(r.submitResult(sess, snap, reveal.text()), true); err != nil {
			return err
		}
	} else if snap.State == tasks.Complete {
		r.writePlain("\n")
	}

	if snap.State == tasks.Failed {
		return fmt.Errorf("%w: %s: %w", shared.ErrJobFailed, snap.Status, snap.Err)
	}
	return nil
}

// readPayload builds the job payload from stdin or the first accepted path.
func (r *Runner) readPayload(cmd *cli.Command) (models.Payload, error) {
	paths := cmd.StringArgs("paths")

	switch {
	case cmd.Bool("stdin") && len(paths) > 0:
		return models.Payload{}, fmt.Errorf("%w: cannot specify both a file and --stdin", shared.ErrInvalidArgument)
	case cmd.Bool("stdin"):
		data, err := io.ReadAll(r.input)
		if err != nil {
			return models.Payload{}, fmt.Errorf("failed to read stdin: %w", err)
		}
		return input.FromText(strings.ToValidUTF8(string(data), "�")), nil
	case len(paths) > 0:
		path, ok := input.FirstAccepted(paths)
		if !ok {
			return models.Payload{}, fmt.Errorf("%w: no Python file among %s", shared.ErrRejectedFile, strings.Join(paths, ", "))
		}
		if len(paths) > 1 {
			r.logger.Debug("using first accepted file", "path", path, "given", len(paths))
		}
		return input.FromFile(path)
	default:
		return models.Payload{}, fmt.Errorf("%w: a .py file or --stdin is required", shared.ErrMissingArgument)
	}
}

func (r *Runner) submitResult(sess *session.Session, snap tasks.Snapshot, code string) SubmitResult {
	result := SubmitResult{
		Session: sess.ID().String(),
		State:   snap.State.String(),
		Status:  snap.Status,
		Code:    code,
	}
	if snap.Err != nil {
		result.Error = snap.Err.Error()
	}

	jobs, err := sess.History()
	if err != nil {
		r.logger.Warn("failed to read history", "error", err)
	}
	if len(jobs) > 0 {
		view := jobs[0].View()
		result.Job = &view
	}
	return result
}

// jobWatch turns submitter snapshots into status lines and reports the first terminal state of a submitted job.
type jobWatch struct {
	r        *Runner
	last     string
	terminal chan tasks.Snapshot
	once     sync.Once
}

func newJobWatch(r *Runner) *jobWatch {
	return &jobWatch{r: r, terminal: make(chan tasks.Snapshot, 1)}
}

// observe is called serially by the submitter.
func (w *jobWatch) observe(s tasks.Snapshot) {
	if s.Status != "" && s.Status != w.last {
		w.last = s.Status
		w.r.writeStatus("%s", s.Status)
	}

	if s.Generation > 0 && !s.InFlight && s.State.Terminal() {
		w.once.Do(func() { w.terminal <- s })
	}
}

// revealWriter streams typewriter frames to w as they grow.
type revealWriter struct {
	w       io.Writer
	enabled bool

	mu      sync.Mutex
	printed string
	done    chan struct{}
	once    sync.Once
}

func newRevealWriter(w io.Writer, enabled bool) *revealWriter {
	return &revealWriter{w: w, enabled: enabled, done: make(chan struct{})}
}

func (rw *revealWriter) frame(f typewriter.Frame) {
	rw.mu.Lock()
	if rw.enabled {
		if strings.HasPrefix(f.Text, rw.printed) {
			io.WriteString(rw.w, f.Text[len(rw.printed):])
		} else {
			io.WriteString(rw.w, "\n"+f.Text)
		}
	}
	rw.printed = f.Text
	rw.mu.Unlock()

	if f.Done {
		rw.once.Do(func() { close(rw.done) })
	}
}

func (rw *revealWriter) text() string {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.printed
}
