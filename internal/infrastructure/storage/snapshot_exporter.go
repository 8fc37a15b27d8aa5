package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	appevent "github.com/procurement/backend/internal/application/event"
	"go.uber.org/zap"
)

// ObjectWriter stores whole objects
type ObjectWriter interface {
	Put(ctx context.Context, storageKey string, data []byte, contentType string) error
}

// SnapshotKey is where the latest snapshot of an entity is written
func SnapshotKey(entityType, entityID string) string {
	return path.Join("sync", entityType, entityID+".json")
}

// ObjectSnapshotExporter writes each snapshot to sync/{entityType}/{entityId}.json,
// overwriting the previous export of the same entity
type ObjectSnapshotExporter struct {
	writer ObjectWriter
	logger *zap.Logger
}

// NewObjectSnapshotExporter creates an exporter over an object store
func NewObjectSnapshotExporter(writer ObjectWriter, logger *zap.Logger) *ObjectSnapshotExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectSnapshotExporter{writer: writer, logger: logger}
}

// Export implements appevent.SnapshotExporter
func (e *ObjectSnapshotExporter) Export(ctx context.Context, snapshot appevent.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotKey(snapshot.EntityType, snapshot.EntityID)
	if err := e.writer.Put(ctx, key, data, "application/json"); err != nil {
		return err
	}
	e.logger.Debug("snapshot written",
		zap.String("storage_key", key),
		zap.String("reference", snapshot.Reference),
		zap.Int("version", snapshot.Version),
	)
	return nil
}

// LogSnapshotExporter logs snapshots instead of storing them. Used when object
// storage is disabled.
type LogSnapshotExporter struct {
	logger *zap.Logger
}

// NewLogSnapshotExporter creates a log-only exporter
func NewLogSnapshotExporter(logger *zap.Logger) *LogSnapshotExporter {
	return &LogSnapshotExporter{logger: logger}
}

// Export implements appevent.SnapshotExporter
func (e *LogSnapshotExporter) Export(_ context.Context, snapshot appevent.Snapshot) error {
	e.logger.Info("sync requested",
		zap.String("entity_type", snapshot.EntityType),
		zap.String("entity_id", snapshot.EntityID),
		zap.String("reference", snapshot.Reference),
		zap.Int("version", snapshot.Version),
		zap.ByteString("snapshot", snapshot.Data),
	)
	return nil
}

var (
	_ appevent.SnapshotExporter = (*ObjectSnapshotExporter)(nil)
	_ appevent.SnapshotExporter = (*LogSnapshotExporter)(nil)
	_ ObjectWriter              = (*S3ObjectStorage)(nil)
	_ ObjectWriter              = (*MemoryObjectStorage)(nil)
)
