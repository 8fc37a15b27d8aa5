package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/procurement/backend/internal/domain/shared"
)

// MockEventHandler is a mock implementation of shared.EventHandler for testing.
type MockEventHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
}

// NewMockEventHandler creates a new mock event handler.
func NewMockEventHandler(eventTypes ...string) *MockEventHandler {
	return &MockEventHandler{
		eventTypes: eventTypes,
		handled:    make([]shared.DomainEvent, 0),
	}
}

// EventTypes returns the event types this handler subscribes to.
func (h *MockEventHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle processes an event.
func (h *MockEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

// Handled returns all handled events.
func (h *MockEventHandler) Handled() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	result := make([]shared.DomainEvent, len(h.handled))
	copy(result, h.handled)
	return result
}

// HandledCount returns the number of handled events.
func (h *MockEventHandler) HandledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

// SetError sets the error to return from Handle.
func (h *MockEventHandler) SetError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.err = err
}

// Reset clears all handled events.
func (h *MockEventHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = make([]shared.DomainEvent, 0)
	h.err = nil
}

// RecordingOutbox implements shared.OutboxEventSaver by keeping events in
// memory. Events staged by a rolled back transaction are still recorded, so
// tests asserting on committed events should check the outcome first.
type RecordingOutbox struct {
	mu     sync.Mutex
	events []shared.DomainEvent
	err    error
}

// NewRecordingOutbox creates an empty recording outbox.
func NewRecordingOutbox() *RecordingOutbox {
	return &RecordingOutbox{}
}

// SaveEvents records the events.
func (o *RecordingOutbox) SaveEvents(ctx context.Context, txProvider any, events ...shared.DomainEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.events = append(o.events, events...)
	return nil
}

// SetError makes subsequent SaveEvents calls fail.
func (o *RecordingOutbox) SetError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Events returns all recorded events.
func (o *RecordingOutbox) Events() []shared.DomainEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := make([]shared.DomainEvent, len(o.events))
	copy(result, o.events)
	return result
}

// EventsOfType returns the recorded events with the given type.
func (o *RecordingOutbox) EventsOfType(eventType string) []shared.DomainEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	var result []shared.DomainEvent
	for _, e := range o.events {
		if e.EventType() == eventType {
			result = append(result, e)
		}
	}
	return result
}

// Reset clears the recorded events and error.
func (o *RecordingOutbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = nil
	o.err = nil
}

// TestEvent is a simple domain event for testing.
type TestEvent struct {
	shared.BaseDomainEvent
	Data string
}

// NewTestEvent creates a new test event for the given aggregate.
func NewTestEvent(eventType string, aggregateID uuid.UUID) *TestEvent {
	return &TestEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", aggregateID),
		Data:            "test-data",
	}
}

// NewTestEventWithID creates a test event with a specific event ID.
func NewTestEventWithID(eventID uuid.UUID, eventType string, aggregateID uuid.UUID) *TestEvent {
	event := NewTestEvent(eventType, aggregateID)
	event.ID = eventID
	return event
}

// WaitForCondition waits for a condition to become true.
// Returns true if the condition was met, false if timeout occurred.
func WaitForCondition(t *testing.T, condition func() bool, timeout, interval time.Duration) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

// WaitForEventCount waits until the handler has processed at least n events.
func WaitForEventCount(t *testing.T, handler *MockEventHandler, count int, timeout time.Duration) bool {
	t.Helper()

	return WaitForCondition(t, func() bool {
		return handler.HandledCount() >= count
	}, timeout, 10*time.Millisecond)
}
