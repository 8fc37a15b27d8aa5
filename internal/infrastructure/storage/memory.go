package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/procurement/backend/internal/application/document"
)

var _ document.ObjectStorage = (*MemoryObjectStorage)(nil)

// MemoryObject is an object held by MemoryObjectStorage
type MemoryObject struct {
	Data        []byte
	ContentType string
	StoredAt    time.Time
}

// MemoryObjectStorage keeps objects in process memory. It backs development
// runs without object storage and tests; its presigned URLs are not reachable.
type MemoryObjectStorage struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]MemoryObject
}

// NewMemoryObjectStorage creates an empty store
func NewMemoryObjectStorage(baseURL string) *MemoryObjectStorage {
	if baseURL == "" {
		baseURL = "memory://procurement"
	}
	return &MemoryObjectStorage{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		objects: make(map[string]MemoryObject),
	}
}

// GenerateUploadURL returns a placeholder upload URL
func (s *MemoryObjectStorage) GenerateUploadURL(_ context.Context, storageKey, _ string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	return s.baseURL + "/upload/" + storageKey, time.Now().Add(expiresIn), nil
}

// GenerateDownloadURL returns a placeholder download URL
func (s *MemoryObjectStorage) GenerateDownloadURL(_ context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	return s.baseURL + "/download/" + storageKey, time.Now().Add(expiresIn), nil
}

// ObjectExists reports whether storageKey was Put
func (s *MemoryObjectStorage) ObjectExists(_ context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[storageKey]
	return ok, nil
}

// Put stores a copy of data under storageKey
func (s *MemoryObjectStorage) Put(_ context.Context, storageKey string, data []byte, contentType string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[storageKey] = MemoryObject{
		Data:        append([]byte(nil), data...),
		ContentType: contentType,
		StoredAt:    time.Now(),
	}
	return nil
}

// Get returns the object stored under storageKey
func (s *MemoryObjectStorage) Get(storageKey string) (MemoryObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[storageKey]
	return obj, ok
}
