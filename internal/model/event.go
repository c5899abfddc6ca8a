package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned by ParseEvent for a message whose type tag
// is not one of the four known kinds.
var ErrUnknownEvent = errors.New("unknown progress event type")

// EventType is the "type" tag carried by every progress stream message.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventStopped  EventType = "stopped"
)

// Event is one message from the download progress stream. The set of
// implementations is closed: StartEvent, ProgressEvent, CompleteEvent
// and StoppedEvent.
type Event interface {
	Type() EventType
	isEvent()
}

// StartEvent announces how many messages the job will walk through.
type StartEvent struct {
	Total int
}

// ProgressEvent reports one processed message and the files saved from it.
type ProgressEvent struct {
	Current int
	Total   int
	Files   []string
}

// CompleteEvent is sent once every message has been processed.
type CompleteEvent struct{}

// StoppedEvent is sent when the job honoured a stop request.
type StoppedEvent struct{}

func (StartEvent) Type() EventType    { return EventStart }
func (ProgressEvent) Type() EventType { return EventProgress }
func (CompleteEvent) Type() EventType { return EventComplete }
func (StoppedEvent) Type() EventType  { return EventStopped }

func (StartEvent) isEvent()    {}
func (ProgressEvent) isEvent() {}
func (CompleteEvent) isEvent() {}
func (StoppedEvent) isEvent()  {}

// IsTerminal reports whether ev ends a job on its own.
// A StartEvent with zero total is terminal as well.
func IsTerminal(ev Event) bool {
	switch e := ev.(type) {
	case CompleteEvent, StoppedEvent:
		return true
	case StartEvent:
		return e.Total == 0
	default:
		return false
	}
}

// wireEvent mirrors the JSON shape the server emits.
type wireEvent struct {
	Type    EventType `json:"type"`
	Total   int       `json:"total"`
	Current int       `json:"current"`
	Files   []string  `json:"files"`
}

// ParseEvent decodes the JSON payload of one stream message.
func ParseEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding progress event: %w", err)
	}

	switch w.Type {
	case EventStart:
		return StartEvent{Total: w.Total}, nil
	case EventProgress:
		return ProgressEvent{
			Current: w.Current,
			Total:   w.Total,
			Files:   w.Files,
		}, nil
	case EventComplete:
		return CompleteEvent{}, nil
	case EventStopped:
		return StoppedEvent{}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, w.Type)
	}
}
