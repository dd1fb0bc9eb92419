package session

import "github.com/roach88/nopg/internal/model"

// EventType is a lifecycle transition.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes one committed change.
type Event struct {
	Type   EventType
	Kind   model.Kind
	Entity *model.Entity
}

// Observer receives events after the session that produced them commits.
// Observers run synchronously inside Commit, in subscription order.
type Observer func(Event)
