// Analysis service for submitting source to the dependency-inlining API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/shared"
)

const (
	defaultBaseURL     = "http://localhost:8000"
	defaultAnalyzePath = "/analyze"
	uploadField        = "file"
)

// AnalysisService submits payloads to the analysis endpoint.
type AnalysisService struct {
	baseURL     string
	analyzePath string
	httpClient  *http.Client
	logger      *log.Logger
}

var _ Analyzer = (*AnalysisService)(nil)

// NewAnalysisService creates a new analysis service for the API at baseURL.
func NewAnalysisService(baseURL string, client *http.Client) *AnalysisService {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &AnalysisService{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		analyzePath: defaultAnalyzePath,
		httpClient:  client,
		logger:      log.Default(),
	}
}

// WithAnalyzePath overrides the route prefix the session ID is appended to.
func (a *AnalysisService) WithAnalyzePath(p string) *AnalysisService {
	if p != "" {
		a.analyzePath = "/" + strings.Trim(p, "/")
	}
	return a
}

// WithLogger sets the service logger.
func (a *AnalysisService) WithLogger(l *log.Logger) *AnalysisService {
	a.logger = l
	return a
}

// Name identifies the service in logs.
func (a *AnalysisService) Name() string { return "analysis" }

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Endpoint returns the submission URL for a session.
func (a *AnalysisService) Endpoint(sessionID string) string {
	return a.baseURL + a.analyzePath + "/" + url.PathEscape(sessionID)
}

// Analyze uploads the payload as a multipart form and decodes the acknowledgement.
//
// The acknowledgement is not the result; results arrive on the push channel. Non-2xx responses wrap
// [shared.ErrSubmissionRejected] and transport failures wrap [shared.ErrAPIRequest].
func (a *AnalysisService) Analyze(ctx context.Context, sessionID string, payload models.Payload) (*models.Ack, error) {
	body, contentType, err := encodeUpload(payload)
	if err != nil {
		return nil, err
	}

	resp, err := a.post(ctx, a.Endpoint(sessionID), contentType, body)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		detail := decodeDetail(resp.Body)
		a.logger.Warn("submission rejected", "status", resp.StatusCode, "detail", detail)
		return nil, fmt.Errorf("%w: status %d: %s", shared.ErrSubmissionRejected, resp.StatusCode, detail)
	}

	var ack models.Ack
	if err := json.Unmarshal(resp.Body, &ack); err != nil {
		a.logger.Debug("acknowledgement was not JSON", "error", err)
	}
	a.logger.Debug("submission acknowledged", "status", resp.StatusCode, "bytes", len(resp.Body))
	return &ack, nil
}

// post performs a POST request and returns the raw response.
func (a *AnalysisService) post(ctx context.Context, fullURL, contentType string, data []byte) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", shared.ErrAPIRequest, err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}, nil
}

// encodeUpload writes the payload as a single text/plain file part.
func encodeUpload(payload models.Payload) ([]byte, string, error) {
	filename := payload.Filename
	if filename == "" {
		filename = models.UploadFilename
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadField, filename))
	header.Set("Content-Type", "text/plain")

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.WriteString(part, payload.Text); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// decodeDetail extracts a FastAPI style {"detail": ...} message, falling back to the raw body.
func decodeDetail(body []byte) string {
	var detail models.ErrorDetail
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}
	return strings.TrimSpace(string(body))
}
