package event

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/procurement/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Notification is a human readable summary of a committed state change
type Notification struct {
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Reference     string    `json:"reference"`
	Action        string    `json:"action"`
	PreviousState string    `json:"previous_state,omitempty"`
	NewState      string    `json:"new_state"`
	ActorID       string    `json:"actor_id"`
	Subject       string    `json:"subject"`
	Body          string    `json:"body"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Notifier delivers notifications to people following a document.
// Implementations can support different channels (log, mail, webhook).
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// NotificationHandler turns EntityStateChanged events into notifications
type NotificationHandler struct {
	notifier Notifier
	printer  *message.Printer
	caser    cases.Caser
	logger   *zap.Logger
}

// NewNotificationHandler creates a handler writing messages in the given locale
func NewNotificationHandler(notifier Notifier, locale language.Tag, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{
		notifier: notifier,
		printer:  message.NewPrinter(locale),
		caser:    cases.Title(locale),
		logger:   logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *NotificationHandler) EventTypes() []string {
	return []string{shared.EventTypeEntityStateChanged}
}

// Handle processes an EntityStateChangedEvent
func (h *NotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*shared.EntityStateChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			shared.EventTypeEntityStateChanged, event.EventType())
	}

	notification := h.build(changed)
	if err := h.notifier.Notify(ctx, notification); err != nil {
		h.logger.Error("failed to deliver notification",
			zap.String("entity_type", notification.EntityType),
			zap.String("reference", notification.Reference),
			zap.String("action", notification.Action),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (h *NotificationHandler) build(e *shared.EntityStateChangedEvent) Notification {
	subject := h.caser.String(strings.ReplaceAll(e.Action, "_", " "))
	var body string
	if e.PreviousState == "" || e.PreviousState == e.NewState {
		body = h.printer.Sprintf("%s %s is %s", e.AggregateType(), e.Reference, e.NewState)
	} else {
		body = h.printer.Sprintf("%s %s moved from %s to %s", e.AggregateType(), e.Reference, e.PreviousState, e.NewState)
	}
	return Notification{
		EntityType:    e.AggregateType(),
		EntityID:      e.AggregateID().String(),
		Reference:     e.Reference,
		Action:        e.Action,
		PreviousState: e.PreviousState,
		NewState:      e.NewState,
		ActorID:       e.ActorID.String(),
		Subject:       h.printer.Sprintf("%s: %s", e.Reference, subject),
		Body:          body,
		OccurredAt:    e.OccurredAt(),
	}
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by the logger
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the notification
func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.logger.Info(notification.Subject,
		zap.String("entity_type", notification.EntityType),
		zap.String("entity_id", notification.EntityID),
		zap.String("reference", notification.Reference),
		zap.String("action", notification.Action),
		zap.String("previous_state", notification.PreviousState),
		zap.String("new_state", notification.NewState),
		zap.String("actor_id", notification.ActorID),
		zap.String("body", notification.Body),
	)
	return nil
}

var _ shared.EventHandler = (*NotificationHandler)(nil)
