// package typewriter reveals a result one rune at a time on a fixed cadence
package typewriter

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultInterval is the delay between revealed runes.
const DefaultInterval = 8 * time.Millisecond

// State is the renderer's animation state.
type State int

const (
	Idle State = iota
	Revealing
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Revealing:
		return "revealing"
	case Done:
		return "done"
	default:
		return ""
	}
}

// Ticker is the subset of [time.Ticker] the renderer depends on.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{time.NewTicker(d)}
}

// Frame is one display update. Done is set on the frame that completes a reveal.
type Frame struct {
	Text string
	Done bool
}

// Option configures a [Renderer].
type Option func(*Renderer)

// WithInterval sets the reveal cadence. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithTicker replaces the ticker source.
func WithTicker(fn func(time.Duration) Ticker) Option {
	return func(r *Renderer) { r.newTicker = fn }
}

// WithInstant makes every [Renderer.Present] reveal the whole text in a single frame.
func WithInstant() Option {
	return func(r *Renderer) { r.instant = true }
}

// WithLogger sets the renderer's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// Renderer is an idle → revealing → done state machine over the last presented text.
//
// Each reveal owns a generation number. Ticks carry the generation they were scheduled under and are rejected once a
// newer reveal (or [Renderer.Stop]) has bumped it, so the display is always a prefix of the latest presented text.
type Renderer struct {
	mu        sync.Mutex
	target    []rune
	index     int
	display   string
	state     State
	gen       uint64
	stop      chan struct{}
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	instant   bool
	logger    *log.Logger

	emitMu  sync.Mutex
	onFrame func(Frame)
}

// New creates an idle renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		interval:  DefaultInterval,
		newTicker: newTimeTicker,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnFrame registers the display callback, replacing any previous one.
//
// Frames are delivered from the ticker goroutine. The callback must not call [Renderer.Present] or [Renderer.Stop].
func (r *Renderer) OnFrame(fn func(Frame)) {
	r.emitMu.Lock()
	r.onFrame = fn
	r.emitMu.Unlock()
}

// Present cancels any running reveal, clears the display and starts revealing text.
func (r *Renderer) Present(text string) {
	r.mu.Lock()
	r.cancelLocked()
	r.gen++
	gen := r.gen
	r.target = []rune(text)
	r.index = 0
	r.display = ""

	if len(r.target) == 0 || r.instant {
		r.index = len(r.target)
		r.display = text
		r.state = Done
		r.mu.Unlock()
		r.emit(gen, Frame{Text: text, Done: true})
		return
	}

	r.state = Revealing
	stop := make(chan struct{})
	r.stop = stop
	ticker := r.newTicker(r.interval)
	r.mu.Unlock()

	r.logger.Debug("reveal started", "runes", len(r.target), "generation", gen)
	r.emit(gen, Frame{})
	go r.run(gen, ticker, stop)
}

// Stop cancels scheduled ticks. The current display is left as is.
func (r *Renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked()
	r.gen++
	if r.state == Revealing {
		r.state = Idle
	}
}

// Display returns the currently revealed prefix.
func (r *Renderer) Display() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.display
}

// State returns the animation state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Renderer) cancelLocked() {
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

func (r *Renderer) run(gen uint64, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			frame, ok := r.tick(gen)
			if !ok {
				return
			}
			r.emit(gen, frame)
			if frame.Done {
				return
			}
		}
	}
}

// tick advances the reveal by one rune if gen is still current.
func (r *Renderer) tick(gen uint64) (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen || r.state != Revealing {
		return Frame{}, false
	}

	r.index++
	r.display = string(r.target[:r.index])
	if r.index == len(r.target) {
		r.state = Done
		r.cancelLocked()
	}
	return Frame{Text: r.display, Done: r.state == Done}, true
}

// emit delivers a frame unless a newer reveal has started since it was produced.
func (r *Renderer) emit(gen uint64, frame Frame) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	current := gen == r.gen
	r.mu.Unlock()

	if current && r.onFrame != nil {
		r.onFrame(frame)
	}
}
