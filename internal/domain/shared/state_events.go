package shared

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Event types delivered to external collaborators
const (
	EventTypeEntityStateChanged = "EntityStateChanged"
	EventTypeSyncRequested      = "SyncRequested"
)

// EntityStateChangedEvent is emitted for every committed state transition and
// feeds notification delivery.
type EntityStateChangedEvent struct {
	BaseDomainEvent
	Reference     string    `json:"reference"`
	Action        string    `json:"action"`
	PreviousState string    `json:"previous_state"`
	NewState      string    `json:"new_state"`
	ActorID       uuid.UUID `json:"actor_id"`
}

// NewEntityStateChangedEvent creates a state change event for an aggregate
func NewEntityStateChangedEvent(aggType string, aggID uuid.UUID, reference, action, previous, next string, actorID uuid.UUID) *EntityStateChangedEvent {
	return &EntityStateChangedEvent{
		BaseDomainEvent: NewBaseDomainEvent(EventTypeEntityStateChanged, aggType, aggID),
		Reference:       reference,
		Action:          action,
		PreviousState:   previous,
		NewState:        next,
		ActorID:         actorID,
	}
}

// SyncRequestedEvent asks the export collaborator to refresh its copy of an
// entity. Consumers suppress repeats for the same entity inside a short window.
type SyncRequestedEvent struct {
	BaseDomainEvent
	Reference string          `json:"reference"`
	Version   int             `json:"version"`
	Snapshot  json.RawMessage `json:"snapshot"`
}

// NewSyncRequestedEvent creates a sync request carrying a JSON snapshot
func NewSyncRequestedEvent(aggType string, aggID uuid.UUID, reference string, version int, snapshot any) (*SyncRequestedEvent, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return &SyncRequestedEvent{
		BaseDomainEvent: NewBaseDomainEvent(EventTypeSyncRequested, aggType, aggID),
		Reference:       reference,
		Version:         version,
		Snapshot:        raw,
	}, nil
}
