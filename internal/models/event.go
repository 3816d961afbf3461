package models

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/biy/internal/shared"
)

// EventType tags a push channel frame.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
)

// Event is one decoded push channel frame.
//
// Progress events carry Message; complete events carry Code.
type Event struct {
	Type    EventType
	Message string
	Code    string
}

// wireEvent mirrors the JSON frame. Code is a pointer so a missing field can be told apart from an empty result.
type wireEvent struct {
	Type    EventType `json:"type"`
	Message *string   `json:"message,omitempty"`
	Code    *string   `json:"code,omitempty"`
}

// ProgressEvent builds a progress event.
func ProgressEvent(message string) Event {
	return Event{Type: EventProgress, Message: message}
}

// CompleteEvent builds a completion event.
func CompleteEvent(code string) Event {
	return Event{Type: EventComplete, Code: code}
}

// DecodeEvent parses a text frame.
//
// Returns [shared.ErrMalformedEvent] for frames that are not the expected shape and [shared.ErrUnknownEvent] for
// well-formed frames of an unrecognized type. Callers drop both.
func DecodeEvent(frame []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(frame, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", shared.ErrMalformedEvent, err)
	}

	switch w.Type {
	case EventProgress:
		if w.Message == nil {
			return Event{}, fmt.Errorf("%w: progress without message", shared.ErrMalformedEvent)
		}
		return ProgressEvent(*w.Message), nil
	case EventComplete:
		if w.Code == nil {
			return Event{}, fmt.Errorf("%w: complete without code", shared.ErrMalformedEvent)
		}
		return CompleteEvent(*w.Code), nil
	case "":
		return Event{}, fmt.Errorf("%w: missing type", shared.ErrMalformedEvent)
	default:
		return Event{}, fmt.Errorf("%w: %q", shared.ErrUnknownEvent, w.Type)
	}
}

// MarshalJSON encodes the event in its wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{Type: e.Type}
	switch e.Type {
	case EventProgress:
		w.Message = &e.Message
	case EventComplete:
		w.Code = &e.Code
	}
	return json.Marshal(w)
}

// Ack is the submission endpoint's acknowledgement body.
//
// The service echoes the result here, but the push channel's complete event is authoritative.
type Ack struct {
	Result string `json:"result"`
}

// ErrorDetail is the error body returned by the service on non-2xx responses.
type ErrorDetail struct {
	Detail string `json:"detail"`
}
