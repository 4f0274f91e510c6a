package events

import "time"

// EventType identifies the kind of event emitted during verification.
type EventType string

const (
	EventVerifyStart     EventType = "verify.start"
	EventInspectStart    EventType = "inspect.start"
	EventInspectEnd      EventType = "inspect.end"
	EventInspectError    EventType = "inspect.error"
	EventVerifyResult    EventType = "verify.result"
	EventRunSkipped      EventType = "run.skipped"
	EventSpecLoaded      EventType = "spec.loaded"
	EventReportPublished EventType = "report.published"
)

// Event represents a single verification event. Ref is the "kind[name]"
// form of the resource the event concerns, if any.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Ref       string        `json:"ref,omitempty"`
	Data      any           `json:"data,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewRefEvent creates an event about one resource.
func NewRefEvent(typ EventType, ref string, data any) Event {
	e := NewEvent(typ, data)
	e.Ref = ref
	return e
}
