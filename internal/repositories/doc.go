// Package repositories implements SQLite persistence for session job history.
//
// Key Implementations:
//   - [JobRepository] : CRUD for [models.Job] records with session and state filters
//   - [JobRecorder] : Adapter that lets the job submitter record lifecycle transitions
//
// The history database defaults to ":memory:" so records live only as long as the session.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
