// Package server provides HTTP routing, middleware, and a mock analysis service for development and tests.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Mock Analysis Service
//
// [Server] implements the two endpoints the client talks to:
//   - /ws/{id} : [PushHandler] upgrades to a WebSocket and registers it in the [Hub] under the session ID
//   - /analyze/{id} : [AnalyzeHandler] accepts a multipart "file" upload (.py only)
//
// For each accepted upload the handler pushes the progress sequence, then the complete event, then a final
// "Analysis complete!" progress event, and only then writes the {"result": ...} response. Events are paced by a
// rate limiter so front ends can be exercised at human speed.
//
// The [Engine] interface stands in for the real analysis backend. [EchoEngine] performs no analysis.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
