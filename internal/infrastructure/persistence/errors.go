package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/procurement/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps driver and gorm errors onto domain error codes.
// Domain errors pass through unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.NewDomainError("DUPLICATE_IDENTIFIER", fmt.Sprintf("identifier already issued: %v", err))
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return storageUnavailable(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return storageUnavailable(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate key"):
		return shared.NewDomainError("DUPLICATE_IDENTIFIER", fmt.Sprintf("identifier already issued: %v", err))
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "too many clients"),
		strings.Contains(msg, "connection reset"):
		return storageUnavailable(err)
	}
	return err
}

func storageUnavailable(err error) error {
	return shared.NewDomainError("STORAGE_UNAVAILABLE", fmt.Sprintf("storage unavailable: %v", err))
}

func concurrencyConflict(kind string) error {
	return shared.NewDomainError("CONCURRENCY_CONFLICT", kind+" has been modified by another transaction")
}

var errSequenceNotReturned = errors.New("sequence upsert returned no value")
