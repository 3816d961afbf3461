package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/biy/internal/input"
	"github.com/desertthunder/biy/internal/models"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Progress messages pushed while a submission is processed.
const (
	MsgStarting   = "Starting code analysis..."
	MsgParsing    = "Parsing code and fetching dependencies..."
	MsgGenerating = "Generating code with dependency results..."
	MsgComplete   = "Analysis complete!"
)

const maxUploadBytes = 10 << 20

// PushHandler upgrades /ws/{id} requests and registers them with the [Hub].
type PushHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewPushHandler creates a push handler. Only allowedOrigin (or non-browser clients) may connect.
func NewPushHandler(hub *Hub, allowedOrigin string, logger *log.Logger) *PushHandler {
	return &PushHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *PushHandler) Routes() []string {
	return []string{"/ws/{id}"}
}

// ServeHTTP upgrades the connection and drains reads until the client disconnects.
func (h *PushHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", "session", sessionID, "error", err)
		return
	}

	h.hub.Register(sessionID, conn)
	defer func() {
		h.hub.Unregister(sessionID, conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// AnalyzeHandler serves POST /analyze/{id}.
//
// Progress and the result are pushed to the session's connection before the response is written.
type AnalyzeHandler struct {
	hub     *Hub
	engine  Engine
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewAnalyzeHandler creates an analyze handler. Pushed events are paced at eventsPerSecond; zero disables pacing.
func NewAnalyzeHandler(hub *Hub, engine Engine, eventsPerSecond float64, logger *log.Logger) *AnalyzeHandler {
	limit := rate.Inf
	if eventsPerSecond > 0 {
		limit = rate.Limit(eventsPerSecond)
	}
	return &AnalyzeHandler{
		hub:     hub,
		engine:  engine,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AnalyzeHandler) Routes() []string {
	return []string{"/analyze/{id}"}
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}
	sessionID := r.PathValue("id")
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Field required: file")
		return
	}
	defer file.Close()

	if !input.Accept(header.Filename) {
		writeDetail(w, http.StatusBadRequest, "Only Python files are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	source := string(data)

	h.logger.Info("analysis started", "session", sessionID, "bytes", len(data), "connected", h.hub.Connected(sessionID))

	result, err := h.run(ctx, sessionID, source)
	if err != nil {
		h.logger.Error("analysis failed", "session", sessionID, "error", err)
		h.push(context.WithoutCancel(ctx), sessionID, models.ProgressEvent(fmt.Sprintf("Error: %v", err)))
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("analysis complete", "session", sessionID, "result_bytes", len(result))
	writeJSON(w, http.StatusOK, models.Ack{Result: result})
}

func (h *AnalyzeHandler) run(ctx context.Context, sessionID, source string) (string, error) {
	if err := h.push(ctx, sessionID, models.ProgressEvent(MsgStarting)); err != nil {
		return "", err
	}
	if err := h.push(ctx, sessionID, models.ProgressEvent(MsgParsing)); err != nil {
		return "", err
	}

	deps, err := h.engine.Dependencies(ctx, source)
	if err != nil {
		return "", fmt.Errorf("dependency analysis failed: %w", err)
	}

	if err := h.push(ctx, sessionID, models.ProgressEvent(MsgGenerating)); err != nil {
		return "", err
	}

	result, err := h.engine.Inline(ctx, source, deps)
	if err != nil {
		return "", fmt.Errorf("code generation failed: %w", err)
	}

	if err := h.push(ctx, sessionID, models.CompleteEvent(result)); err != nil {
		return "", err
	}
	if err := h.push(ctx, sessionID, models.ProgressEvent(MsgComplete)); err != nil {
		return "", err
	}
	return result, nil
}

// push waits for the pacing limiter and sends the event. A missing connection is not an error.
func (h *AnalyzeHandler) push(ctx context.Context, sessionID string, event models.Event) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return err
	}
	h.hub.Send(sessionID, event)
	return nil
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeDetail writes a FastAPI style error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorDetail{Detail: detail})
}
