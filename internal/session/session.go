// package session composes the push channel, upload service, typewriter and submitter for one client session
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/biy/internal/channel"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/repositories"
	"github.com/desertthunder/biy/internal/services"
	"github.com/desertthunder/biy/internal/shared"
	"github.com/desertthunder/biy/internal/tasks"
	"github.com/desertthunder/biy/internal/typewriter"
)

// Identity is the opaque session identifier shared by the push channel route and the upload route.
type Identity string

// NewIdentity returns a fresh random identity. It never changes for the life of a session.
func NewIdentity() Identity {
	return Identity(shared.GenerateID())
}

func (i Identity) String() string { return string(i) }

// Options configures a [Session]. The zero value is usable.
type Options struct {
	Logger     *log.Logger
	HTTPClient *http.Client

	// Analyzer replaces the HTTP upload service.
	Analyzer services.Analyzer

	// Observer receives every submitter snapshot.
	Observer tasks.Observer

	// Typewriter options are applied after the configured interval.
	Typewriter []typewriter.Option

	// DB is an externally owned history database. When nil and history.path is set, the session opens and owns one.
	DB *sql.DB

	// Identity overrides the generated session identity.
	Identity Identity
}

// Session is the root of one client: a single identity, one push channel and one submitter.
type Session struct {
	id        Identity
	channel   *channel.Channel
	submitter *tasks.Submitter
	renderer  *typewriter.Renderer
	recorder  *repositories.JobRecorder
	db        *sql.DB
	ownsDB    bool
	logger    *log.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	unsubs  []func()
}

// New builds a session from cfg. Nothing is dialed until [Session.Start].
//
// The only failure is opening the history database.
func New(cfg *shared.Config, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	id := opts.Identity
	if id == "" {
		id = NewIdentity()
	}
	logger = shared.WithLogger(logger, "session", id.String())

	s := &Session{id: id, db: opts.DB, logger: logger}

	if s.db == nil && cfg.History.Path != "" {
		db, err := shared.OpenHistory(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		s.db = db
		s.ownsDB = true
	}

	pushURL := channel.URL(cfg.Service.PushURL(), cfg.Service.WSPath, id.String())
	s.channel = channel.New(pushURL,
		channel.WithHandshakeTimeout(cfg.Service.HandshakeTimeout),
		channel.WithLogger(logger),
	)

	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = services.NewAnalysisService(cfg.Service.BaseURL, opts.HTTPClient).
			WithAnalyzePath(cfg.Service.AnalyzePath).
			WithLogger(logger)
	}

	twOpts := append([]typewriter.Option{
		typewriter.WithInterval(cfg.Typewriter.Interval),
		typewriter.WithLogger(logger),
	}, opts.Typewriter...)
	s.renderer = typewriter.New(twOpts...)

	subOpts := []tasks.Option{tasks.WithPresenter(s.renderer), tasks.WithLogger(logger)}
	if opts.Observer != nil {
		subOpts = append(subOpts, tasks.WithObserver(opts.Observer))
	}
	if s.db != nil {
		s.recorder = repositories.NewJobRecorder(repositories.NewJobRepository(s.db))
		subOpts = append(subOpts, tasks.WithRecorder(s.recorder))
	}
	s.submitter = tasks.NewSubmitter(id.String(), analyzer, subOpts...)

	return s, nil
}

// Start subscribes the submitter to the channel and opens it. Submissions are accepted once Start returns nil.
//
// Subscriptions happen before the dial so no event is missed, and exactly once per session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: session closed", shared.ErrChannelClosed)
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	s.unsubs = append(s.unsubs,
		s.channel.OnEvent(s.submitter.HandleEvent),
		s.channel.OnClose(s.submitter.HandleClose),
	)
	s.mu.Unlock()

	if err := s.channel.Open(ctx); err != nil {
		return err
	}
	s.submitter.MarkOpen()
	return nil
}

// Submit delegates to the submitter.
func (s *Session) Submit(ctx context.Context, payload models.Payload) error {
	return s.submitter.Submit(ctx, payload)
}

// ID returns the session identity.
func (s *Session) ID() Identity { return s.id }

// Renderer returns the typewriter the result is presented on.
func (s *Session) Renderer() *typewriter.Renderer { return s.renderer }

// Snapshot returns the submitter state.
func (s *Session) Snapshot() tasks.Snapshot { return s.submitter.Snapshot() }

// Done is closed once the push channel has closed.
func (s *Session) Done() <-chan struct{} { return s.channel.Done() }

// History lists this session's recorded jobs, newest first. Without a history database it returns nil.
func (s *Session) History() ([]*models.Job, error) {
	if s.recorder == nil {
		return nil, nil
	}
	return s.recorder.History(s.id.String())
}

// Close unsubscribes, closes the channel, stops the renderer and closes an owned history database. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	// The submitter still hears the closure, so an in-flight job fails rather than hanging.
	if err := s.channel.Close(); err != nil {
		s.logger.Warn("failed to close channel", "error", err)
	}
	for _, unsub := range unsubs {
		unsub()
	}
	s.renderer.Stop()

	if s.ownsDB {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close history: %w", err)
		}
	}
	return nil
}
