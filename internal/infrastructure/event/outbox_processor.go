package event

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrProcessorRunning is returned by Start on a processor already running
var ErrProcessorRunning = errors.New("outbox processor already running")

// OutboxProcessorConfig tunes the relay loop
type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// CleanupRetention is how long sent entries are kept; zero disables cleanup
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns the relay defaults
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     2 * time.Second,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessorConfigFrom maps the outbox config section, keeping defaults
// for unset values
func OutboxProcessorConfigFrom(cfg config.OutboxConfig) OutboxProcessorConfig {
	out := DefaultOutboxProcessorConfig()
	if cfg.BatchSize > 0 {
		out.BatchSize = cfg.BatchSize
	}
	if cfg.PollInterval > 0 {
		out.PollInterval = cfg.PollInterval
	}
	if cfg.CleanupRetention > 0 {
		out.CleanupRetention = cfg.CleanupRetention
	}
	return out
}

// OutboxProcessor relays committed outbox entries to the event bus. Delivery
// is at least once: an entry is marked sent only after every handler accepted
// it, and failures are retried with backoff until the entry is dead.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	publisher  shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	metrics    *DeliveryMetrics
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// OutboxProcessorOption configures an OutboxProcessor
type OutboxProcessorOption func(*OutboxProcessor)

// WithProcessorMetrics records relay outcomes
func WithProcessorMetrics(metrics *DeliveryMetrics) OutboxProcessorOption {
	return func(p *OutboxProcessor) { p.metrics = metrics }
}

// NewOutboxProcessor creates a processor relaying entries from repo to publisher
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	publisher shared.EventPublisher,
	serializer *EventSerializer,
	cfg OutboxProcessorConfig,
	logger *zap.Logger,
	opts ...OutboxProcessorOption,
) *OutboxProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultOutboxProcessorConfig().BatchSize
	}
	p := &OutboxProcessor{
		repo:       repo,
		publisher:  publisher,
		serializer: serializer,
		config:     cfg,
		logger:     logger.Named("outbox"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the relay loop in the background until Stop or ctx is done
func (p *OutboxProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return ErrProcessorRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
		zap.Duration("cleanup_retention", p.config.CleanupRetention),
	)
	return nil
}

// Stop cancels the loop and waits for the batch in flight, bounded by ctx
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	var cleanup <-chan time.Time
	if p.config.CleanupRetention > 0 && p.config.CleanupInterval > 0 {
		t := time.NewTicker(p.config.CleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			if _, err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("load outbox entries", zap.Error(err))
			}
		case <-cleanup:
			if _, err := p.Cleanup(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("clean up outbox", zap.Error(err))
			}
		}
	}
}

// ProcessOnce relays one batch of pending entries and one batch of due
// retries, returning how many were delivered
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) (int, error) {
	pending, err := p.repo.FindPending(ctx, p.config.BatchSize)
	if err != nil {
		return 0, err
	}
	sent := p.relay(ctx, pending)

	due, err := p.repo.FindRetryable(ctx, time.Now(), p.config.BatchSize)
	if err != nil {
		return sent, err
	}
	return sent + p.relay(ctx, due), nil
}

// Cleanup deletes sent entries older than the retention
func (p *OutboxProcessor) Cleanup(ctx context.Context) (int64, error) {
	if p.config.CleanupRetention <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		p.logger.Info("outbox cleaned up", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

func (p *OutboxProcessor) relay(ctx context.Context, entries []*shared.OutboxEntry) int {
	if len(entries) == 0 {
		return 0
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	// another processor may have claimed some of them already
	claimed, err := p.repo.MarkProcessing(ctx, ids)
	if err != nil {
		p.logger.Error("claim outbox entries", zap.Error(err))
		return 0
	}
	p.metrics.claimed(ctx, len(claimed))

	sent := 0
	for _, entry := range claimed {
		if p.deliver(ctx, entry) {
			sent++
		}
	}
	return sent
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) bool {
	ctx, span := telemetry.StartServiceSpan(ctx, "OutboxProcessor", "deliver",
		attribute.String(telemetry.SpanAttrEntityID, entry.AggregateID.String()),
		telemetry.AttrEventType.String(entry.EventType),
	)
	defer span.End()

	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil {
		err = p.publisher.Publish(ctx, event)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		p.fail(ctx, entry, err)
		return false
	}

	entry.MarkSent()
	if err := p.repo.Update(ctx, entry); err != nil {
		// TODO: requeue entries left PROCESSING by a failed update or a crash
		telemetry.RecordError(span, err)
		p.logger.Error("mark outbox entry sent", zap.String("event_id", entry.EventID.String()), zap.Error(err))
		return false
	}
	p.metrics.outcome(ctx, entry.EventType, OutcomeSent)
	return true
}

func (p *OutboxProcessor) fail(ctx context.Context, entry *shared.OutboxEntry, cause error) {
	entry.MarkFailed(cause.Error())
	log := p.logger.With(
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_type", entry.AggregateType),
		zap.String("aggregate_id", entry.AggregateID.String()),
		zap.Int("retry_count", entry.RetryCount),
		zap.Error(cause),
	)
	if entry.IsDead() {
		p.metrics.outcome(ctx, entry.EventType, OutcomeDead)
		log.Error("outbox entry dead lettered")
	} else {
		p.metrics.outcome(ctx, entry.EventType, OutcomeFailed)
		log.Warn("outbox delivery failed", zap.Timep("next_retry_at", entry.NextRetryAt))
	}
	if err := p.repo.Update(ctx, entry); err != nil {
		log.Error("record outbox failure", zap.NamedError("update_error", err))
	}
}
