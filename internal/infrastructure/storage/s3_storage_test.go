package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	appevent "github.com/procurement/backend/internal/application/event"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		Bucket:       "procurement-proofs",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		Endpoint:     "localhost:9000",
		UsePathStyle: true,
	}
}

func TestNewS3ObjectStorage(t *testing.T) {
	t.Run("requires a bucket", func(t *testing.T) {
		cfg := testStorageConfig()
		cfg.Bucket = ""
		_, err := NewS3ObjectStorage(cfg)
		assert.ErrorContains(t, err, "bucket is required")
	})

	t.Run("requires credentials", func(t *testing.T) {
		cfg := testStorageConfig()
		cfg.SecretKey = ""
		_, err := NewS3ObjectStorage(cfg)
		assert.ErrorContains(t, err, "credentials are required")
	})

	t.Run("defaults", func(t *testing.T) {
		s, err := NewS3ObjectStorage(testStorageConfig(), WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.Equal(t, "procurement-proofs", s.Bucket())
		assert.Equal(t, 15*time.Minute, s.expiresIn)
	})
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		ssl      bool
		want     string
	}{
		{"", false, "http://localhost:9000"},
		{"minio:9000", false, "http://minio:9000"},
		{"s3.eu-west-3.amazonaws.com", true, "https://s3.eu-west-3.amazonaws.com"},
		{"https://storage.internal", false, "https://storage.internal"},
	}
	for _, tt := range tests {
		got, err := normalizeEndpoint(tt.endpoint, tt.ssl)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestS3ObjectStorage_Presign(t *testing.T) {
	s, err := NewS3ObjectStorage(testStorageConfig())
	require.NoError(t, err)
	ctx := context.Background()
	key := "proofs/order/7f1c/ab12cd34-receipt.pdf"

	upload, expiresAt, err := s.GenerateUploadURL(ctx, key, "application/pdf", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upload, "http://localhost:9000/procurement-proofs/"+key))
	assert.Contains(t, upload, "X-Amz-Signature")
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	download, expiresAt, err := s.GenerateDownloadURL(ctx, key, 0)
	require.NoError(t, err)
	assert.Contains(t, download, "X-Amz-Expires=900")
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	_, _, err = s.GenerateUploadURL(ctx, "", "application/pdf", 0)
	assert.Error(t, err)
	_, err = s.ObjectExists(ctx, "")
	assert.Error(t, err)
	assert.Error(t, s.Put(ctx, "", nil, "application/json"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(errors.New("operation error S3: HeadObject, NotFound")))
	assert.True(t, isNotFound(errors.New("api error NoSuchKey")))
	assert.False(t, isNotFound(errors.New("connection refused")))
}

func TestMemoryObjectStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryObjectStorage("")

	exists, err := s.ObjectExists(ctx, "proofs/a.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	data := []byte("%PDF-1.7")
	require.NoError(t, s.Put(ctx, "proofs/a.pdf", data, "application/pdf"))
	data[0] = 'X'

	exists, err = s.ObjectExists(ctx, "proofs/a.pdf")
	require.NoError(t, err)
	assert.True(t, exists)
	obj, ok := s.Get("proofs/a.pdf")
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.7", string(obj.Data), "stored bytes are a copy")

	url, _, err := s.GenerateDownloadURL(ctx, "proofs/a.pdf", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "memory://procurement/download/proofs/a.pdf", url)
}

func TestObjectSnapshotExporter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryObjectStorage("")
	exporter := NewObjectSnapshotExporter(store, nil)

	snapshot := appevent.Snapshot{
		EntityType: "Order",
		EntityID:   "0b6f5f0e-3f7a-4c7e-9d6b-2f0c4b1f9a11",
		Reference:  "CMD/2026/10/0001",
		Version:    2,
		Data:       json.RawMessage(`{"status":"VALIDATED"}`),
	}
	require.NoError(t, exporter.Export(ctx, snapshot))
	snapshot.Version = 3
	require.NoError(t, exporter.Export(ctx, snapshot))

	obj, ok := store.Get("sync/Order/0b6f5f0e-3f7a-4c7e-9d6b-2f0c4b1f9a11.json")
	require.True(t, ok)
	assert.Equal(t, "application/json", obj.ContentType)

	var stored appevent.Snapshot
	require.NoError(t, json.Unmarshal(obj.Data, &stored))
	assert.Equal(t, 3, stored.Version, "latest export replaces the previous one")
	assert.JSONEq(t, `{"status":"VALIDATED"}`, string(stored.Data))
}

func TestLogSnapshotExporter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	exporter := NewLogSnapshotExporter(zap.New(core))

	require.NoError(t, exporter.Export(context.Background(), appevent.Snapshot{
		EntityType: "FundingRequest",
		Reference:  "FUND/2026/10/0003",
		Version:    1,
		Data:       json.RawMessage(`{}`),
	}))
	entries := logs.FilterMessage("sync requested").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "FUND/2026/10/0003", entries[0].ContextMap()["reference"])
}
