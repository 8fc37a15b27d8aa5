package shared

import "github.com/google/uuid"

// Actor identifies who performs an operation. Role lookup happens upstream; the
// core only enforces the admin gates.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Admin bool      `json:"admin"`
}

// NewActor creates a non-admin actor
func NewActor(id uuid.UUID) Actor {
	return Actor{ID: id}
}

// NewAdmin creates an admin actor
func NewAdmin(id uuid.UUID) Actor {
	return Actor{ID: id, Admin: true}
}

// RequireAdmin returns ErrForbidden unless the actor is an admin
func (a Actor) RequireAdmin(action string) error {
	if !a.Admin {
		return NewDomainError("FORBIDDEN", "Only an admin can "+action)
	}
	return nil
}

// Validate checks that the actor carries an identity
func (a Actor) Validate() error {
	if a.ID == uuid.Nil {
		return NewDomainError("INVALID_INPUT", "Actor ID cannot be empty")
	}
	return nil
}
