package procurement

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"

	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/shared/valueobject"
)

// LineItem is an ordered good: quantity with unit and a free-text description
type LineItem struct {
	Quantity    valueobject.Quantity `json:"quantity"`
	Description string               `json:"description"`
}

// NewLineItem validates and creates a line item
func NewLineItem(quantity valueobject.Quantity, description string) (LineItem, error) {
	description = strings.TrimSpace(description)
	if !quantity.IsPositive() {
		return LineItem{}, shared.NewDomainError("INVALID_INPUT", "Line item quantity must be positive")
	}
	if description == "" {
		return LineItem{}, shared.NewDomainError("INVALID_INPUT", "Line item description is required")
	}
	if len(description) > 500 {
		return LineItem{}, shared.NewDomainError("INVALID_INPUT", "Line item description cannot exceed 500 characters")
	}
	return LineItem{Quantity: quantity, Description: description}, nil
}

// LineItems is stored as a JSON column
type LineItems []LineItem

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *LineItems) Scan(value any) error {
	return scanJSON(value, l, "LineItems")
}

func scanJSON(value any, dest any, name string) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan " + name + ": unsupported type")
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, dest)
}
