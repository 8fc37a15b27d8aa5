// Package event holds the delivery side of the ledger: notification and
// export sync handlers fed by the outbox, and the dead letter operations
// used by operators when a collaborator was down for too long.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DeliveryService exposes the outbox queue to operators
type DeliveryService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(repo shared.OutboxRepository, logger *zap.Logger) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryService{repo: repo, logger: logger}
}

// DeliveryEntryResponse is an outbox entry as shown to operators
type DeliveryEntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	EntityID      uuid.UUID  `json:"entity_id"`
	EntityType    string     `json:"entity_type"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	LastError     string     `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DeliveryStatsResponse counts outbox entries per status
type DeliveryStatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// DeadLetters lists entries whose retries are exhausted
func (s *DeliveryService) DeadLetters(ctx context.Context, filter shared.Filter) ([]DeliveryEntryResponse, int64, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	entries, total, err := s.repo.FindDead(ctx, page, filter.Limit())
	if err != nil {
		return nil, 0, fmt.Errorf("list dead letters: %w", err)
	}
	out := make([]DeliveryEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = toDeliveryEntryResponse(e)
	}
	return out, total, nil
}

// Redeliver puts a dead letter back in the queue
func (s *DeliveryService) Redeliver(ctx context.Context, id uuid.UUID, actor shared.Actor) (*DeliveryEntryResponse, error) {
	if err := actor.RequireAdmin("redeliver events"); err != nil {
		return nil, err
	}
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.ResetForRetry(); err != nil {
		return nil, shared.NewDomainError("INVALID_STATE_TRANSITION", err.Error())
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("requeue outbox entry: %w", err)
	}

	s.logger.Info("dead letter requeued",
		zap.String("entry_id", id.String()),
		zap.String("event_type", entry.EventType),
		zap.String("entity_id", entry.AggregateID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	response := toDeliveryEntryResponse(entry)
	return &response, nil
}

// RedeliverAll puts every dead letter back in the queue and returns how many
// were requeued
func (s *DeliveryService) RedeliverAll(ctx context.Context, actor shared.Actor) (int64, error) {
	if err := actor.RequireAdmin("redeliver events"); err != nil {
		return 0, err
	}
	const pageSize = 100
	var count int64
	for {
		// requeued entries leave the dead set, so page 1 always holds the rest
		entries, _, err := s.repo.FindDead(ctx, 1, pageSize)
		if err != nil {
			return count, fmt.Errorf("list dead letters: %w", err)
		}
		requeued := 0
		for _, entry := range entries {
			if err := entry.ResetForRetry(); err != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				s.logger.Error("failed to requeue outbox entry", zap.String("entry_id", entry.ID.String()), zap.Error(err))
				continue
			}
			requeued++
		}
		count += int64(requeued)
		if len(entries) < pageSize || requeued == 0 {
			break
		}
	}

	s.logger.Info("dead letters requeued", zap.Int64("count", count), zap.String("actor_id", actor.ID.String()))
	return count, nil
}

// Stats counts entries per delivery status
func (s *DeliveryService) Stats(ctx context.Context) (*DeliveryStatsResponse, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count outbox entries: %w", err)
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	return &DeliveryStatsResponse{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
		Total:      total,
	}, nil
}

func toDeliveryEntryResponse(e *shared.OutboxEntry) DeliveryEntryResponse {
	return DeliveryEntryResponse{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		EntityID:      e.AggregateID,
		EntityType:    e.AggregateType,
		Status:        string(e.Status),
		Attempts:      e.RetryCount,
		MaxAttempts:   e.MaxRetries,
		LastError:     e.LastError,
		NextAttemptAt: e.NextRetryAt,
		DeliveredAt:   e.ProcessedAt,
		CreatedAt:     e.CreatedAt,
	}
}
