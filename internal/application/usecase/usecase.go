// Package usecase holds the plumbing shared by the application services:
// identifier issuing, list paging, input error mapping and write failure logs.
package usecase

import (
	"context"
	"errors"

	"github.com/procurement/backend/internal/application/unitofwork"
	"github.com/procurement/backend/internal/domain/sequence"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// IssueNumber mints the identifier of a new document. It runs outside the
// document's transaction, so a failed create leaves a gap but never reuses a
// number.
func IssueNumber(ctx context.Context, issuer *sequence.Issuer, policy unitofwork.RetryPolicy, kind sequence.Kind, bm *telemetry.BusinessMetrics) (string, error) {
	var number string
	err := unitofwork.Retry(ctx, policy, func() error {
		var err error
		number, err = issuer.Issue(ctx, kind)
		return err
	})
	if err != nil {
		return "", err
	}
	if bm != nil {
		bm.RecordSequenceIssued(ctx, kind.String())
	}
	return number, nil
}

// InvalidInput turns a value object parse failure into a domain error
func InvalidInput(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return shared.NewDomainError("INVALID_INPUT", err.Error())
}

// ListFilter builds the paging part of a repository filter
func ListFilter(page, pageSize int, search string) shared.Filter {
	filter := shared.DefaultFilter()
	if page > 0 {
		filter.Page = page
	}
	if pageSize > 0 {
		filter.PageSize = pageSize
	}
	if search != "" {
		filter.Filters["search"] = search
	}
	return filter
}

// LogFailure logs a failed write. Business rule violations are expected and
// logged at debug; a duplicate identifier is an alert.
func LogFailure(logger *zap.Logger, entity, op, ref string, err error) {
	fields := []zap.Field{
		zap.String("entity", entity),
		zap.String("operation", op),
		zap.String("reference", ref),
		zap.Error(err),
	}
	var domainErr *shared.DomainError
	switch {
	case errors.Is(err, shared.ErrDuplicateIdentifier):
		logger.Error("ALERT: duplicate identifier issued", fields...)
	case shared.IsRetryable(err):
		logger.Warn("write failed after retries", fields...)
	case errors.As(err, &domainErr):
		logger.Debug("write rejected", fields...)
	default:
		logger.Error("write failed", fields...)
	}
}
