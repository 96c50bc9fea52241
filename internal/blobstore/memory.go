package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MemoryStore is an in-memory Store for tests and embedded deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string

	// FailPut, when set, makes Put fail for keys containing the substring.
	// Tests use it to trigger compensation paths.
	FailPut string

	// FailDelete, when set, makes Delete fail for keys containing the
	// substring.
	FailDelete string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		baseURL: "https://blobs.local/casebook",
	}
}

// Put stores the object bytes and returns a synthetic URL.
func (s *MemoryStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if s.FailPut != "" && strings.Contains(key, s.FailPut) {
		return "", fmt.Errorf("blobstore put %q: injected failure", key)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("blobstore put %q: %w", key, err)
	}

	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()

	return s.baseURL + "/" + key, nil
}

// Delete removes the object. Missing keys are not an error.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if s.FailDelete != "" && strings.Contains(key, s.FailDelete) {
		return fmt.Errorf("blobstore delete %q: injected failure", key)
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Get returns the stored bytes for a key.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Bucket returns the synthetic bucket name used in URLs.
func (s *MemoryStore) Bucket() string {
	return "casebook"
}
