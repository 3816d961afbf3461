// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/biy/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// FakeTicker is a manually driven ticker.
type FakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *FakeTicker) C() <-chan time.Time { return f.ch }

func (f *FakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (f *FakeTicker) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// Tick delivers one tick and reports whether a receiver took it within a second.
func (f *FakeTicker) Tick() bool {
	select {
	case f.ch <- time.Now():
		return true
	case <-time.After(time.Second):
		return false
	}
}

// FakeClock hands out [FakeTicker] values and remembers them in creation order.
type FakeClock struct {
	mu       sync.Mutex
	tickers  []*FakeTicker
	Interval time.Duration
}

// NewTicker creates a ticker. The interval is recorded but ignored.
func (c *FakeClock) NewTicker(d time.Duration) *FakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &FakeTicker{ch: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	c.Interval = d
	return t
}

// Last returns the most recently created ticker, or nil.
func (c *FakeClock) Last() *FakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

// Count returns how many tickers were created.
func (c *FakeClock) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// RecordingPresenter captures presented results.
type RecordingPresenter struct {
	mu        sync.Mutex
	presented []string
}

func (p *RecordingPresenter) Present(text string) {
	p.mu.Lock()
	p.presented = append(p.presented, text)
	p.mu.Unlock()
}

// Presented returns a copy of every presented result in order.
func (p *RecordingPresenter) Presented() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.presented...)
}

// RecordedJob is one lifecycle call captured by [RecordingRecorder].
type RecordedJob struct {
	Started bool
	Source  models.InputSource
	State   models.JobState
	Status  string
	Length  int
	Err     error
}

// RecordingRecorder captures job lifecycle calls and optionally fails them.
type RecordingRecorder struct {
	mu    sync.Mutex
	calls []RecordedJob
	Fail  error
}

func (r *RecordingRecorder) JobStarted(sessionID string, source models.InputSource, filename string, size int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RecordedJob{Started: true, Source: source})
	return r.Fail
}

func (r *RecordingRecorder) JobFinished(state models.JobState, status string, resultLength int, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, RecordedJob{State: state, Status: status, Length: resultLength, Err: cause})
	return r.Fail
}

// Calls returns a copy of the captured calls in order.
func (r *RecordingRecorder) Calls() []RecordedJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedJob(nil), r.calls...)
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// Eventually polls cond until it holds or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}
