// Package document issues presigned URLs for payment proofs and supporting
// documents. Files never pass through the service; clients upload straight to
// object storage and then reference the returned storage key.
package document

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// KeyPrefix is the storage prefix of every uploaded proof
const KeyPrefix = "proofs/"

// ObjectStorage is the presigning side of an object store
type ObjectStorage interface {
	// GenerateUploadURL returns a presigned PUT URL for storageKey
	GenerateUploadURL(ctx context.Context, storageKey, contentType string, expiresIn time.Duration) (string, time.Time, error)
	// GenerateDownloadURL returns a presigned GET URL for storageKey
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)
	// ObjectExists reports whether storageKey was uploaded
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

var allowedContentTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
}

var ownerTypes = map[string]bool{
	"order":           true,
	"payment_request": true,
	"funding_request": true,
}

// UploadURLRequest asks for a place to upload a proof
type UploadURLRequest struct {
	OwnerType   string    `json:"owner_type" binding:"required,oneof=order payment_request funding_request"`
	OwnerID     uuid.UUID `json:"owner_id" binding:"required"`
	FileName    string    `json:"file_name" binding:"required,max=255"`
	ContentType string    `json:"content_type" binding:"required"`
}

// URLResponse is a presigned URL and the key it points to
type URLResponse struct {
	StorageKey string    `json:"storage_key"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Service issues presigned document URLs
type Service struct {
	storage   ObjectStorage
	expiresIn time.Duration
	logger    *zap.Logger
}

// NewService creates a new document service
func NewService(storage ObjectStorage, expiresIn time.Duration, logger *zap.Logger) *Service {
	if expiresIn <= 0 {
		expiresIn = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{storage: storage, expiresIn: expiresIn, logger: logger}
}

// RequestUploadURL reserves a storage key under the owning document and
// returns a presigned upload URL for it
func (s *Service) RequestUploadURL(ctx context.Context, actor shared.Actor, req UploadURLRequest) (*URLResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	ownerType := strings.ToLower(strings.TrimSpace(req.OwnerType))
	if !ownerTypes[ownerType] {
		return nil, shared.NewDomainError("INVALID_INPUT", "unknown document owner type: "+req.OwnerType)
	}
	if req.OwnerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Owner ID cannot be empty")
	}
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return nil, shared.NewDomainError("INVALID_INPUT", "unsupported content type: "+req.ContentType)
	}

	key := fmt.Sprintf("%s%s/%s/%s-%s%s", KeyPrefix, ownerType, req.OwnerID, uuid.New().String()[:8], baseName(req.FileName), ext)
	url, expiresAt, err := s.storage.GenerateUploadURL(ctx, key, contentType, s.expiresIn)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	s.logger.Info("upload url issued",
		zap.String("storage_key", key),
		zap.String("owner_type", ownerType),
		zap.String("owner_id", req.OwnerID.String()),
		zap.String("actor_id", actor.ID.String()),
	)
	return &URLResponse{StorageKey: key, URL: url, ExpiresAt: expiresAt}, nil
}

// DownloadURL returns a presigned URL for an uploaded proof
func (s *Service) DownloadURL(ctx context.Context, storageKey string) (*URLResponse, error) {
	storageKey = strings.TrimSpace(storageKey)
	if !strings.HasPrefix(storageKey, KeyPrefix) || strings.Contains(storageKey, "..") {
		return nil, shared.NewDomainError("INVALID_INPUT", "not a document key: "+storageKey)
	}
	exists, err := s.storage.ObjectExists(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("check object: %w", err)
	}
	if !exists {
		return nil, shared.ErrNotFound
	}
	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, storageKey, s.expiresIn)
	if err != nil {
		return nil, fmt.Errorf("presign download: %w", err)
	}
	return &URLResponse{StorageKey: storageKey, URL: url, ExpiresAt: expiresAt}, nil
}

// baseName keeps a short, URL safe stem of the client file name
func baseName(name string) string {
	stem := strings.TrimSuffix(path.Base(strings.ReplaceAll(name, "\\", "/")), path.Ext(name))
	var b strings.Builder
	for _, r := range strings.ToLower(stem) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
		if b.Len() >= 40 {
			break
		}
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
