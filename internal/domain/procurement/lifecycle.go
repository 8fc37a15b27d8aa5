// Package procurement models purchase orders, their supplier proformas, and
// standalone payment requests.
package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
)

// Aggregate type names used in events
const (
	AggregateTypeOrder          = "Order"
	AggregateTypePaymentRequest = "PaymentRequest"
)

// Deletion holds the audit trail of a soft delete
type Deletion struct {
	Reason  string    `json:"reason"`
	ActorID uuid.UUID `json:"actor_id"`
	At      time.Time `json:"at"`
}

// Lifecycle is either Active (Deleted == nil) or Deleted. Deleted is terminal.
type Lifecycle struct {
	Deleted *Deletion `json:"deleted,omitempty"`
}

// Active returns an active lifecycle
func Active() Lifecycle {
	return Lifecycle{}
}

// IsDeleted returns true once the entity has been soft-deleted
func (l Lifecycle) IsDeleted() bool {
	return l.Deleted != nil
}

// EnsureActive returns ErrEntityDeleted for deleted entities
func (l Lifecycle) EnsureActive() error {
	if l.IsDeleted() {
		return shared.NewDomainError("ENTITY_DELETED", "entity was deleted on "+l.Deleted.At.Format(time.RFC3339))
	}
	return nil
}

// delete moves the lifecycle to Deleted
func (l *Lifecycle) delete(actor shared.Actor, reason string) error {
	if err := l.EnsureActive(); err != nil {
		return err
	}
	if err := actor.RequireAdmin("delete records"); err != nil {
		return err
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_INPUT", "Deletion reason is required")
	}
	l.Deleted = &Deletion{Reason: reason, ActorID: actor.ID, At: time.Now()}
	return nil
}

// State label used in state change events for a deleted entity
const stateDeleted = "DELETED"
