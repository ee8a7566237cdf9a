package signin

import (
	"time"

	"github.com/nfrund/signin/internal/classify"
	"github.com/nfrund/signin/internal/domain"
	"github.com/nfrund/signin/internal/flow"
	"github.com/nfrund/signin/internal/pubsub"
)

// EventKind names what happened to an attempt.
type EventKind string

const (
	EventTabSelected  EventKind = "tab_selected"
	EventSubmitted    EventKind = "submitted"
	EventCodeSent     EventKind = "code_sent"
	EventVerifying    EventKind = "verifying"
	EventRedirecting  EventKind = "redirecting"
	EventFailed       EventKind = "failed"
	EventInvalid      EventKind = "invalid"
	EventFieldEdited  EventKind = "field_edited"
	EventCooldownTick EventKind = "cooldown_tick"
	EventClosed       EventKind = "closed"
)

// AttemptEvent is published on the attempt's topic after every transition.
type AttemptEvent struct {
	AttemptID      string           `json:"attempt_id"`
	Kind           EventKind        `json:"kind"`
	State          flow.State       `json:"state"`
	Notice         *domain.Notice   `json:"notice,omitempty"`
	Classification *classify.Result `json:"classification,omitempty"`
	At             time.Time        `json:"at"`
}

// TopicFor returns the pubsub topic carrying events for attempt id.
func TopicFor(id string) string {
	return "signin.attempt." + id
}

// EventsFor returns the typed event for attempt id.
func EventsFor(id string) pubsub.Event[AttemptEvent] {
	return pubsub.NewEvent[AttemptEvent](TopicFor(id))
}
