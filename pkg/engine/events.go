package engine

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a progress event emitted by the engine.
type EventType string

const (
	// EventRunStarted fires when a run begins.
	EventRunStarted EventType = "run.started"

	// EventRunCompleted fires when a run reaches a terminal status.
	EventRunCompleted EventType = "run.completed"

	// EventDiscoveryStarted fires before the search query for a region.
	EventDiscoveryStarted EventType = "discovery.started"

	// EventDiscoveryCompleted fires with the discovered resource count.
	EventDiscoveryCompleted EventType = "discovery.completed"

	// EventGroupStarted fires when a deletion group is released.
	EventGroupStarted EventType = "group.started"

	// EventGroupCompleted fires when every record in a group is terminal.
	EventGroupCompleted EventType = "group.completed"

	// EventDeleteStarted fires when a delete call is issued.
	EventDeleteStarted EventType = "delete.started"

	// EventDeleteRetried fires before a backoff sleep.
	EventDeleteRetried EventType = "delete.retried"

	// EventDeleteSucceeded fires on Succeeded or AlreadyGone.
	EventDeleteSucceeded EventType = "delete.succeeded"

	// EventDeleteFailed fires on a terminal failure.
	EventDeleteFailed EventType = "delete.failed"

	// EventResourceSkipped fires when a record is skipped.
	EventResourceSkipped EventType = "resource.skipped"

	// EventCompartmentDelete fires when the finalizer issues its call.
	EventCompartmentDelete EventType = "compartment.delete"

	// EventCompartmentDeleted fires when compartment deletion is accepted.
	EventCompartmentDeleted EventType = "compartment.deleted"

	// EventCompartmentDeleteFailed fires when the finalizer gives up.
	EventCompartmentDeleteFailed EventType = "compartment.delete_failed"
)

// Event is a progress notification. Events flow to the configured sink and
// carry enough context to render a live log line without extra lookups.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type.
	Type EventType `json:"type"`

	// RunID is the run this event belongs to.
	RunID string `json:"run_id,omitempty"`

	// Region is the region involved, when regional.
	Region string `json:"region,omitempty"`

	// ResourceType is the resource type involved, when any.
	ResourceType string `json:"resource_type,omitempty"`

	// ResourceID is the resource identifier involved, when any.
	ResourceID string `json:"resource_id,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Attempt is the delete attempt number for retry events.
	Attempt int `json:"attempt,omitempty"`

	// Timestamp is when the event was created.
	Timestamp time.Time `json:"timestamp"`

	// Details carries additional structured context.
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewEvent creates an event with a fresh id and timestamp.
func NewEvent(eventType EventType, message string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithRun attaches the run id.
func (e *Event) WithRun(runID string) *Event {
	e.RunID = runID
	return e
}

// WithRegion attaches the region.
func (e *Event) WithRegion(region string) *Event {
	e.Region = region
	return e
}

// WithResource attaches the resource type and identifier.
func (e *Event) WithResource(resourceType, resourceID string) *Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithAttempt attaches the attempt number.
func (e *Event) WithAttempt(attempt int) *Event {
	e.Attempt = attempt
	return e
}

// WithDetail adds a structured detail.
func (e *Event) WithDetail(key string, value interface{}) *Event {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}
