package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/procurement/backend/internal/domain/shared"
)

// ErrUnknownEventType is returned when a payload names an unregistered type
var ErrUnknownEventType = errors.New("unknown event type")

// EventFactory returns a zero event to unmarshal a payload into
type EventFactory func() shared.DomainEvent

// EventSerializer encodes events for the outbox and decodes them back by
// their type name
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]EventFactory
}

// NewEventSerializer creates an empty serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]EventFactory)}
}

// NewLedgerEventSerializer returns a serializer that knows every event the
// ledger writes to the outbox
func NewLedgerEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register(shared.EventTypeEntityStateChanged, func() shared.DomainEvent { return &shared.EntityStateChangedEvent{} })
	s.Register(shared.EventTypeSyncRequested, func() shared.DomainEvent { return &shared.SyncRequestedEvent{} })
	return s
}

// Register maps eventType to factory, replacing any previous mapping
func (s *EventSerializer) Register(eventType string, factory EventFactory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[eventType] = factory
}

// Serialize encodes event as JSON. Unregistered types are rejected since the
// processor could never decode them.
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	s.mu.RLock()
	_, ok := s.factories[event.EventType()]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, event.EventType())
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes data into a new event of eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return event, nil
}

// Types returns the registered event types in order
func (s *EventSerializer) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	types := make([]string, 0, len(s.factories))
	for t := range s.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
