package database

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/smartfarmlink/smartfarm-backend-go/errs"
)

type memoryEntry struct {
	version int64
	data    []byte
}

// MemoryStore is an in-process DocumentStore. Values are kept as JSON so
// callers never share memory with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(_ context.Context, path string) (Document, error) {
	if _, _, err := splitPath(path); err != nil {
		return Document{}, errs.Validation("%v", err)
	}

	s.mu.RLock()
	entry, ok := s.docs[path]
	s.mu.RUnlock()
	if !ok {
		return Document{}, nil
	}

	return Document{
		Exists:  true,
		Version: entry.version,
		decode: func(v any) error {
			return json.Unmarshal(entry.data, v)
		},
	}, nil
}

func (s *MemoryStore) Set(_ context.Context, path string, value any) error {
	if _, _, err := splitPath(path); err != nil {
		return errs.Validation("%v", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errs.Storage("encode "+path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = memoryEntry{version: s.docs[path].version + 1, data: data}
	return nil
}

func (s *MemoryStore) CompareAndSet(_ context.Context, path string, expectedVersion int64, value any) (int64, error) {
	if _, _, err := splitPath(path); err != nil {
		return 0, errs.Validation("%v", err)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return 0, errs.Storage("encode "+path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A missing entry has version 0.
	if s.docs[path].version != expectedVersion {
		return 0, errs.Conflict(path)
	}
	next := expectedVersion + 1
	s.docs[path] = memoryEntry{version: next, data: data}
	return next, nil
}
