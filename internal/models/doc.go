// Package models defines the wire types and history entities for the biy analysis client.
//
// The package contains two categories of types:
//
// 1. Wire types: values exchanged with the analysis service
//   - [Event] : A push channel frame, either progress (status text) or complete (final result)
//   - [Ack] : Acknowledgement body of the submission endpoint
//   - [ErrorDetail] : Error body of a rejected submission
//
// 2. Persistent entities: session history records
//   - [Job] : One submission-to-result cycle with its final [JobState]
//
// [DecodeEvent] is the single entry point for parsing push frames; it separates malformed frames from frames of an
// unknown type so the channel can drop both without failing the connection.
package models
