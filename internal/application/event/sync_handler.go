package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/procurement/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// Snapshot is the exported copy of an entity
type Snapshot struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Reference  string          `json:"reference"`
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Data       json.RawMessage `json:"data"`
}

// SnapshotExporter hands entity snapshots to the export collaborator
type SnapshotExporter interface {
	Export(ctx context.Context, snapshot Snapshot) error
}

// SyncHandler exports the snapshot carried by SyncRequested events. Repeats
// for the same entity inside the sync window are suppressed by wrapping it in
// an idempotent handler keyed by aggregate.
type SyncHandler struct {
	exporter SnapshotExporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(exporter SnapshotExporter, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{exporter: exporter, logger: logger, now: time.Now}
}

// EventTypes returns the event types this handler is interested in
func (h *SyncHandler) EventTypes() []string {
	return []string{shared.EventTypeSyncRequested}
}

// Handle processes a SyncRequestedEvent
func (h *SyncHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	requested, ok := event.(*shared.SyncRequestedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			shared.EventTypeSyncRequested, event.EventType())
	}

	snapshot := Snapshot{
		EntityType: requested.AggregateType(),
		EntityID:   requested.AggregateID().String(),
		Reference:  requested.Reference,
		Version:    requested.Version,
		ExportedAt: h.now().UTC(),
		Data:       requested.Snapshot,
	}
	if err := h.exporter.Export(ctx, snapshot); err != nil {
		return fmt.Errorf("export %s %s: %w", snapshot.EntityType, snapshot.Reference, err)
	}

	h.logger.Debug("entity snapshot exported",
		zap.String("entity_type", snapshot.EntityType),
		zap.String("reference", snapshot.Reference),
		zap.Int("version", snapshot.Version),
	)
	return nil
}

var _ shared.EventHandler = (*SyncHandler)(nil)
