// Package services defines the [Analyzer] interface for the remote analysis API and implements it over HTTP.
//
// # Submission
//
// [AnalysisService] posts a multipart form to {base_url}/analyze/{session_id} with a single "file" part named
// code.py (Content-Type text/plain). The service replies with an acknowledgement ({"result": ...}) that callers log
// but never treat as the job result: the result arrives on the session's push channel, usually before the
// acknowledgement itself.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrSubmissionRejected] : Non-2xx response; the FastAPI {"detail": ...} body is logged
//   - [shared.ErrAPIRequest] : Transport failure or unreadable response
package services
