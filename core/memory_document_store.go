package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryDocumentStore is a process-local DocumentStore used by default and in tests.
type MemoryDocumentStore struct {
	mu   sync.Mutex
	docs map[string]ConfigDocument
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: map[string]ConfigDocument{}}
}

func (s *MemoryDocumentStore) Get(_ context.Context, id string) (ConfigDocument, bool, error) {
	if s == nil {
		return ConfigDocument{}, false, fmt.Errorf("core: document store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[strings.TrimSpace(id)]
	if !ok {
		return ConfigDocument{}, false, nil
	}
	return doc.Clone(), true, nil
}

func (s *MemoryDocumentStore) Put(_ context.Context, doc ConfigDocument) (ConfigDocument, error) {
	if s == nil {
		return ConfigDocument{}, fmt.Errorf("core: document store is not configured")
	}
	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		return ConfigDocument{}, fmt.Errorf("core: document id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Version = s.docs[doc.ID].Version + 1
	doc.UpdatedAt = time.Now().UTC()
	stored := doc.Clone()
	s.docs[doc.ID] = stored
	return stored.Clone(), nil
}

func (s *MemoryDocumentStore) CompareAndPut(_ context.Context, doc ConfigDocument, expectedVersion int64) (ConfigDocument, error) {
	if s == nil {
		return ConfigDocument{}, fmt.Errorf("core: document store is not configured")
	}
	doc.ID = strings.TrimSpace(doc.ID)
	if doc.ID == "" {
		return ConfigDocument{}, fmt.Errorf("core: document id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.docs[doc.ID]
	if (!exists && expectedVersion != 0) || (exists && current.Version != expectedVersion) {
		return ConfigDocument{}, NewVersionConflictError(doc.ID, expectedVersion)
	}
	doc.Version = expectedVersion + 1
	doc.UpdatedAt = time.Now().UTC()
	stored := doc.Clone()
	s.docs[doc.ID] = stored
	return stored.Clone(), nil
}

var _ DocumentStore = (*MemoryDocumentStore)(nil)
