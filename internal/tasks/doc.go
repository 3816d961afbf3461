// Package tasks coordinates the session's single job across the upload and the push channel.
//
// # Job Lifecycle
//
// The [Submitter] moves a job through Idle → Submitting → InProgress → Complete | Failed:
//
//  1. [Submitter.Submit] : Accepted only while the channel is open and nothing is in flight
//     - Sets the status to "Submitting code..." and bumps the generation
//     - Uploads through [services.Analyzer] and blocks until acknowledged
//     - A rejected or failed upload fails the job with "Error processing code"
//
//  2. [Submitter.HandleEvent] : Applies push events in transport order
//     - Progress events replace the status line
//     - Complete events finish the job and hand the code to the [Presenter]
//
//  3. [Submitter.HandleClose] : Fails an in-flight job with "Connection lost"
//
// # Ordering
//
// The service pushes the complete event before it acknowledges the upload, so an acknowledgement never moves a
// finished job backwards. Acknowledgements from an earlier generation are ignored.
//
// # Progress Reporting
//
// The optional [Observer] receives a [Snapshot] after every transition. Notifications are serialized.
//
// # Job History
//
// The optional [Recorder] interface enables job persistence (repositories.JobRecorder).
//
// Jobs are recorded silently (errors logged) to avoid disrupting submissions.
package tasks
