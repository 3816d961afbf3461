package channel

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/shared"
	tu "github.com/desertthunder/biy/internal/testing"
	"github.com/gorilla/websocket"
)

// pushServer upgrades every request and hands the connection to the test.
type pushServer struct {
	*httptest.Server
	conns chan *websocket.Conn
	path  chan string
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()

	ps := &pushServer{conns: make(chan *websocket.Conn, 1), path: make(chan string, 1)}
	upgrader := websocket.Upgrader{}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		ps.path <- r.URL.Path
		ps.conns <- conn
	}))
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ps.URL, "http")
}

func (ps *pushServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ps.conns:
		t.Cleanup(func() { conn.Close() })
		return conn
	case <-time.After(time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

type eventLog struct {
	mu     sync.Mutex
	events []models.Event
}

func (l *eventLog) add(e models.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []models.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Event(nil), l.events...)
}

func quiet() Option { return WithLogger(log.New(io.Discard)) }

func openChannel(t *testing.T, ps *pushServer) (*Channel, *websocket.Conn) {
	t.Helper()

	ch := New(URL(ps.wsURL(), "/ws", "session-1"), quiet())
	if ch.State() != Connecting {
		t.Fatalf("expected connecting, got %s", ch.State())
	}
	if err := ch.Open(context.Background()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { ch.Close() })
	return ch, ps.accept(t)
}

func TestChannel(t *testing.T) {
	t.Run("Open", func(t *testing.T) {
		ps := newPushServer(t)
		ch, _ := openChannel(t, ps)

		if ch.State() != Open {
			t.Errorf("expected open, got %s", ch.State())
		}
		if p := <-ps.path; p != "/ws/session-1" {
			t.Errorf("unexpected path %s", p)
		}
		if err := ch.Open(context.Background()); !errors.Is(err, shared.ErrChannelClosed) {
			t.Errorf("expected second open to fail, got %v", err)
		}
	})

	t.Run("Open Failure", func(t *testing.T) {
		closes := make(chan error, 1)
		ch := New("ws://127.0.0.1:1/ws/x", quiet(), WithHandshakeTimeout(time.Second))
		ch.OnClose(func(err error) { closes <- err })

		err := ch.Open(context.Background())
		if !errors.Is(err, shared.ErrTransportUnavailable) {
			t.Fatalf("expected ErrTransportUnavailable, got %v", err)
		}
		if ch.State() != Closed {
			t.Errorf("expected closed, got %s", ch.State())
		}
		select {
		case <-ch.Done():
		default:
			t.Error("expected done to be closed")
		}
		select {
		case cause := <-closes:
			if cause == nil {
				t.Error("expected dial error in close notification")
			}
		case <-time.After(time.Second):
			t.Error("expected close notification")
		}
	})

	t.Run("Delivers Events In Order", func(t *testing.T) {
		ps := newPushServer(t)
		ch, server := openChannel(t, ps)

		events := &eventLog{}
		ch.OnEvent(events.add)

		frames := []string{
			`{"type":"progress","message":"Starting code analysis..."}`,
			`{"type":"complete","code":"print(1)"}`,
			`{"type":"progress","message":"Analysis complete!"}`,
		}
		for _, f := range frames {
			if err := server.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				t.Fatalf("write failed: %v", err)
			}
		}

		tu.Eventually(t, time.Second, func() bool { return len(events.snapshot()) == 3 }, "three events")
		got := events.snapshot()
		if got[0] != models.ProgressEvent("Starting code analysis...") ||
			got[1] != models.CompleteEvent("print(1)") ||
			got[2] != models.ProgressEvent("Analysis complete!") {
			t.Errorf("unexpected events %+v", got)
		}
	})

	t.Run("Drops Malformed And Unknown Frames", func(t *testing.T) {
		ps := newPushServer(t)
		ch, server := openChannel(t, ps)

		events := &eventLog{}
		ch.OnEvent(events.add)

		for _, f := range []string{
			`not json`,
			`{"type":"heartbeat"}`,
			`{"type":"complete"}`,
			`{"type":"progress","message":"still here"}`,
		} {
			server.WriteMessage(websocket.TextMessage, []byte(f))
		}

		tu.Eventually(t, time.Second, func() bool { return len(events.snapshot()) == 1 }, "one valid event")
		if ch.State() != Open {
			t.Errorf("expected channel to stay open, got %s", ch.State())
		}
		if got := events.snapshot()[0]; got.Message != "still here" {
			t.Errorf("unexpected event %+v", got)
		}
	})

	t.Run("Handler Replacement", func(t *testing.T) {
		ps := newPushServer(t)
		ch, server := openChannel(t, ps)

		first, second := &eventLog{}, &eventLog{}
		unsubFirst := ch.OnEvent(first.add)
		unsubSecond := ch.OnEvent(second.add)

		unsubFirst()

		server.WriteMessage(websocket.TextMessage, []byte(`{"type":"progress","message":"a"}`))
		tu.Eventually(t, time.Second, func() bool { return len(second.snapshot()) == 1 }, "second handler receives")
		if len(first.snapshot()) != 0 {
			t.Error("replaced handler should not receive events")
		}

		unsubSecond()
		server.WriteMessage(websocket.TextMessage, []byte(`{"type":"progress","message":"b"}`))
		server.WriteMessage(websocket.TextMessage, []byte(`{"type":"progress","message":"c"}`))

		third := &eventLog{}
		time.Sleep(50 * time.Millisecond)
		ch.OnEvent(third.add)
		server.WriteMessage(websocket.TextMessage, []byte(`{"type":"progress","message":"d"}`))
		tu.Eventually(t, time.Second, func() bool { return len(third.snapshot()) == 1 }, "third handler receives")
		if len(second.snapshot()) != 1 {
			t.Errorf("unsubscribed handler received events: %d", len(second.snapshot()))
		}
	})

	t.Run("Server Close Notifies", func(t *testing.T) {
		ps := newPushServer(t)
		ch, server := openChannel(t, ps)

		closes := make(chan error, 1)
		ch.OnClose(func(err error) { closes <- err })

		server.Close()

		select {
		case err := <-closes:
			if err == nil {
				t.Error("expected abnormal closure error")
			}
		case <-time.After(time.Second):
			t.Fatal("expected close notification")
		}
		if ch.State() != Closed {
			t.Errorf("expected closed, got %s", ch.State())
		}
	})

	t.Run("Normal Server Close Carries Nil", func(t *testing.T) {
		ps := newPushServer(t)
		ch, server := openChannel(t, ps)

		closes := make(chan error, 1)
		ch.OnClose(func(err error) { closes <- err })

		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		server.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))

		select {
		case err := <-closes:
			if err != nil {
				t.Errorf("expected nil cause, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("expected close notification")
		}
	})

	t.Run("Close Is Idempotent", func(t *testing.T) {
		ps := newPushServer(t)
		ch, server := openChannel(t, ps)

		go func() {
			for {
				if _, _, err := server.ReadMessage(); err != nil {
					return
				}
			}
		}()

		closes := 0
		var mu sync.Mutex
		ch.OnClose(func(error) {
			mu.Lock()
			closes++
			mu.Unlock()
		})

		if err := ch.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if err := ch.Close(); err != nil {
			t.Fatalf("second close failed: %v", err)
		}

		if ch.State() != Closed {
			t.Errorf("expected closed, got %s", ch.State())
		}
		mu.Lock()
		defer mu.Unlock()
		if closes != 1 {
			t.Errorf("expected one close notification, got %d", closes)
		}
	})

	t.Run("Close Before Open", func(t *testing.T) {
		ch := New("ws://127.0.0.1:1/ws/x", quiet())
		if err := ch.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if ch.State() != Closed {
			t.Errorf("expected closed, got %s", ch.State())
		}
		if err := ch.Open(context.Background()); !errors.Is(err, shared.ErrChannelClosed) {
			t.Errorf("expected ErrChannelClosed, got %v", err)
		}
	})
}

func TestURL(t *testing.T) {
	if got := URL("ws://localhost:8000", "/ws", "abc"); got != "ws://localhost:8000/ws/abc" {
		t.Errorf("unexpected url %s", got)
	}
}
