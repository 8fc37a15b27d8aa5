// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the procurement ledger.
// It tracks document creation, payment activity, and register balances.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	documentCreatedTotal    *Counter
	paymentAppliedTotal     *Counter
	insufficientFundsTotal  *Counter
	fundingTransitionTotal  *Counter
	sequenceIssuedTotal     *Counter
	paymentCorrectionsTotal *Counter

	// Histogram of applied payment amounts
	paymentAmount *Histogram

	// Gauge metrics (point-in-time values)
	caisseBalance *FloatGauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	balanceProvider BalanceMetricsProvider
}

// BalanceMetricsProvider provides register balances for periodic collection.
// The telemetry layer reads balances through it without depending on the
// caisse domain.
type BalanceMetricsProvider interface {
	// GetBalances returns the materialised balance per currency code
	GetBalances(ctx context.Context) (map[string]decimal.Decimal, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	BalanceProvider BalanceMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:           cfg.Meter,
		logger:          logger,
		stopChan:        make(chan struct{}),
		balanceProvider: cfg.BalanceProvider,
	}

	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&bm.documentCreatedTotal, "procurement_document_created_total", "Total number of orders, payment requests and funding requests created", "{documents}"},
		{&bm.paymentAppliedTotal, "procurement_payment_applied_total", "Total number of payments applied", "{payments}"},
		{&bm.insufficientFundsTotal, "procurement_insufficient_funds_total", "Total number of register withdrawals rejected for insufficient funds", "{rejections}"},
		{&bm.fundingTransitionTotal, "procurement_funding_transition_total", "Total number of funding request stage transitions", "{transitions}"},
		{&bm.sequenceIssuedTotal, "procurement_sequence_issued_total", "Total number of identifiers issued", "{identifiers}"},
		{&bm.paymentCorrectionsTotal, "procurement_payment_correction_total", "Total number of payment corrections", "{corrections}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	var err error
	bm.paymentAmount, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "procurement_payment_amount",
		Description: "Distribution of applied payment amounts in major currency units",
		Unit:        "{amount}",
		Boundaries:  []float64{1000, 5000, 10000, 50000, 100000, 500000, 1000000, 5000000},
	})
	if err != nil {
		return nil, err
	}

	bm.caisseBalance, err = NewFloatGauge(
		cfg.Meter,
		"procurement_caisse_balance",
		"Current register balance per currency",
		"{amount}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Document Metrics
// =============================================================================

// DocumentType represents the kind of document for metrics labeling.
type DocumentType string

const (
	DocumentTypeOrder          DocumentType = "order"
	DocumentTypePaymentRequest DocumentType = "payment_request"
	DocumentTypeFundingRequest DocumentType = "funding_request"
)

// RecordDocumentCreated records the creation of an order, payment request or
// funding request.
func (bm *BusinessMetrics) RecordDocumentCreated(ctx context.Context, docType DocumentType) {
	bm.documentCreatedTotal.Inc(ctx, AttrDocumentType.String(string(docType)))
}

// RecordSequenceIssued records an identifier handed out by the sequence generator.
func (bm *BusinessMetrics) RecordSequenceIssued(ctx context.Context, kind string) {
	bm.sequenceIssuedTotal.Inc(ctx, AttrSequenceKind.String(kind))
}

// =============================================================================
// Payment Metrics
// =============================================================================

// RecordPaymentApplied records an applied payment and its amount.
func (bm *BusinessMetrics) RecordPaymentApplied(ctx context.Context, docType DocumentType, mode, currency string, amount decimal.Decimal) {
	attrs := []attribute.KeyValue{
		AttrDocumentType.String(string(docType)),
		AttrPaymentMethod.String(mode),
		AttrCurrency.String(currency),
	}
	bm.paymentAppliedTotal.Inc(ctx, attrs...)
	bm.paymentAmount.Record(ctx, amount.InexactFloat64(), attrs...)
}

// RecordPaymentCorrected records a payment correction or void.
func (bm *BusinessMetrics) RecordPaymentCorrected(ctx context.Context, docType DocumentType, voided bool) {
	bm.paymentCorrectionsTotal.Inc(ctx,
		AttrDocumentType.String(string(docType)),
		attribute.Bool("voided", voided),
	)
}

// RecordInsufficientFunds records a register withdrawal rejected by the balance guard.
func (bm *BusinessMetrics) RecordInsufficientFunds(ctx context.Context, currency string) {
	bm.insufficientFundsTotal.Inc(ctx, AttrCurrency.String(currency))
}

// =============================================================================
// Caisse Metrics
// =============================================================================

// RecordFundingTransition records a funding request moving to stage.
func (bm *BusinessMetrics) RecordFundingTransition(ctx context.Context, stage string) {
	bm.fundingTransitionTotal.Inc(ctx, AttrFundingStage.String(stage))
}

// RecordBalance records the current register balance of a currency.
func (bm *BusinessMetrics) RecordBalance(ctx context.Context, currency string, amount decimal.Decimal) {
	bm.caisseBalance.Record(ctx, amount.InexactFloat64(), AttrCurrency.String(currency))
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of the balance gauges.
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectBalances(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectBalances(ctx)
		}
	}
}

// collectBalances records the balance gauge for every currency.
func (bm *BusinessMetrics) collectBalances(ctx context.Context) {
	if bm.balanceProvider == nil {
		bm.logger.Debug("No balance provider configured, skipping balance metrics collection")
		return
	}

	balances, err := bm.balanceProvider.GetBalances(ctx)
	if err != nil {
		bm.logger.Warn("Failed to get register balances for metrics collection", zap.Error(err))
		return
	}
	for currency, amount := range balances {
		bm.RecordBalance(ctx, currency, amount)
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
